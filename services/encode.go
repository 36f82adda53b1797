package services

import (
	"fmt"
	"math"
	"strconv"

	"flipscout/models"
)

// ForSaleHeader is the fixed column order of the ForSale table.
var ForSaleHeader = []string{
	models.FieldDateScraped,
	models.FieldAddress,
	models.FieldPostalCode,
	models.FieldLink,
	models.FieldPrice,
	models.FieldArea,
	models.FieldLotArea,
	models.FieldBeds,
	models.FieldBaths,
	models.FieldYearBuilt,
	models.FieldPropertyType,
	models.FieldLatitude,
	models.FieldLongitude,
	models.FieldPricePerArea,
	models.FieldFixerKeywords,
	models.FieldCompsCount,
	models.FieldAvgSoldPPA,
	models.FieldCompsSummary,
	models.FieldEstMarginPct,
	models.FieldImageURLs,
	models.FieldDescription,
}

// SoldHeader is the fixed column order of the Sold_Comps table.
var SoldHeader = []string{
	models.FieldDateScraped,
	models.FieldAddress,
	models.FieldPostalCode,
	models.FieldLink,
	models.FieldPrice,
	models.FieldArea,
	models.FieldLotArea,
	models.FieldBeds,
	models.FieldBaths,
	models.FieldYearBuilt,
	models.FieldPropertyType,
	models.FieldLatitude,
	models.FieldLongitude,
	models.FieldPricePerArea,
	models.FieldSoldDate,
	models.FieldImageURLs,
	models.FieldDescription,
}

// EncodeTable renders listings as a table with the given header. The header
// row is always present, even for an empty batch.
func EncodeTable(name, runID string, header []string, listings []*models.Listing) (models.Table, error) {
	t := models.Table{
		Name:   name,
		RunID:  runID,
		Header: append([]string(nil), header...),
		Rows:   make([][]string, 0, len(listings)),
	}
	for i, l := range listings {
		row := make([]string, len(header))
		for j, col := range header {
			cell, err := encodeCell(l, col)
			if err != nil {
				return models.Table{}, fmt.Errorf("encode %s row %d: %w", name, i, err)
			}
			row[j] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func encodeCell(l *models.Listing, col string) (string, error) {
	switch col {
	case models.FieldDateScraped:
		return l.DateScraped, nil
	case models.FieldAddress:
		return l.Address, nil
	case models.FieldPostalCode:
		return l.PostalCode, nil
	case models.FieldLink:
		return l.Link, nil
	case models.FieldPrice:
		return formatNumber(col, l.Price)
	case models.FieldArea:
		return formatNumber(col, l.Area)
	case models.FieldLotArea:
		return formatNumber(col, l.LotArea)
	case models.FieldBeds:
		return formatNumber(col, l.Beds)
	case models.FieldBaths:
		return formatNumber(col, l.Baths)
	case models.FieldYearBuilt:
		return formatNumber(col, l.YearBuilt)
	case models.FieldPropertyType:
		return l.PropertyType, nil
	case models.FieldLatitude:
		return formatNumber(col, l.Latitude)
	case models.FieldLongitude:
		return formatNumber(col, l.Longitude)
	case models.FieldPricePerArea:
		return formatNumber(col, l.PricePerArea)
	case models.FieldFixerKeywords:
		return l.FixerKeywords, nil
	case models.FieldCompsCount:
		return strconv.Itoa(l.Comps.Count), nil
	case models.FieldAvgSoldPPA:
		return formatNumber(col, l.Comps.AvgPricePerArea)
	case models.FieldCompsSummary:
		return l.Comps.Summary, nil
	case models.FieldEstMarginPct:
		if l.EstMarginPct == nil {
			return "", nil
		}
		return formatNumber(col, *l.EstMarginPct)
	case models.FieldSoldDate:
		return l.SoldDate, nil
	case models.FieldImageURLs:
		return JoinImages(l.ImageURLs), nil
	case models.FieldDescription:
		return l.Description, nil
	}
	return "", fmt.Errorf("unknown column %q", col)
}

func formatNumber(col string, f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("column %s: non-finite value %v", col, f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
