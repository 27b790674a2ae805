// Package e2e provides end-to-end tests with a larger catalog and multiple queries.
package e2e

import (
	"fmt"

	"github.com/hyperjump/mekiki/internal/models"
)

// QueryTestCase defines a query and the product ID(s) that must appear in
// search results. At least one of ExpectedProductIDs must be present.
type QueryTestCase struct {
	Mode               models.SearchMode
	Query              string
	ImagePath          string
	ExpectedProductIDs []string
	Description        string
}

// Corpus holds products and query test cases for E2E tests.
type Corpus struct {
	Products     []*models.ProductInput
	TestCases    []QueryTestCase
	TotalProducts int
	TotalQueries  int
}

// BuildCorpus returns a catalog of products with varied titles and multiple
// query test cases. Each product has a unique "signature" phrase so queries
// can assert the correct product is returned.
func BuildCorpus() *Corpus {
	products := buildProducts(60)
	cases := buildQueryTestCases(products)
	return &Corpus{
		Products:      products,
		TestCases:     cases,
		TotalProducts: len(products),
		TotalQueries:  len(cases),
	}
}

func buildProducts(n int) []*models.ProductInput {
	templates := []struct {
		title       string
		description string
	}{
		{"Red running shoes", "Lightweight mesh trainers for road running with cushioned sole"},
		{"Blue ceramic coffee mug", "Hand-glazed stoneware mug holding 350ml"},
		{"Leather shoulder bag", "Full-grain leather bag with adjustable strap and brass hardware"},
		{"Wireless noise-cancelling headphones", "Over-ear headphones with 30 hour battery life"},
		{"Stainless steel chef knife", "Forged 20cm blade with ergonomic walnut handle"},
		{"Organic cotton t-shirt", "Plain crew-neck tee in heavyweight organic cotton"},
		{"Bamboo cutting board", "End-grain bamboo board gentle on knife edges"},
		{"Merino wool scarf", "Soft lambswool scarf woven in a herringbone pattern"},
		{"Cast iron skillet", "Pre-seasoned 26cm skillet for stovetop and oven"},
		{"Canvas weekender duffel", "Waxed canvas travel bag with leather trim"},
		{"Insulated water bottle", "Double-wall vacuum bottle keeping drinks cold 24 hours"},
		{"Linen table runner", "Stonewashed linen runner in natural flax colour"},
		{"Mechanical wristwatch", "Automatic movement with sapphire crystal and date window"},
		{"Denim trucker jacket", "Classic fit jacket in rigid indigo denim"},
		{"Walnut desk organizer", "Solid walnut tray with compartments for pens and cards"},
		{"Ceramic plant pot", "Matte white pot with drainage hole for indoor plants"},
		{"Trail hiking boots", "Waterproof leather boots with aggressive lug outsole"},
		{"Silk pocket square", "Hand-rolled edges with paisley print"},
		{"Copper pour-over kettle", "Gooseneck spout for controlled coffee brewing"},
		{"Felt laptop sleeve", "Wool felt sleeve fitting 14 inch laptops"},
	}
	products := make([]*models.ProductInput, 0, n)
	for i := 0; i < n; i++ {
		tpl := templates[i%len(templates)]
		variant := i/len(templates) + 1
		id := fmt.Sprintf("sku-%03d", i+1)
		title := tpl.title
		if variant > 1 {
			title = fmt.Sprintf("%s v%d", tpl.title, variant)
		}
		products = append(products, &models.ProductInput{
			ProductID:   id,
			Title:       title,
			Description: tpl.description,
			ImagePath:   fmt.Sprintf("images/%s.jpg", id),
		})
	}
	return products
}

func buildQueryTestCases(products []*models.ProductInput) []QueryTestCase {
	cases := []QueryTestCase{
		{
			Mode:               models.ModeText,
			Query:              products[0].Title + " " + products[0].Description,
			ExpectedProductIDs: []string{products[0].ProductID},
			Description:        "text exact product phrase",
		},
		{
			Mode:               models.ModeImage,
			ImagePath:          products[3].ImagePath,
			ExpectedProductIDs: []string{products[3].ProductID},
			Description:        "image exact product photo",
		},
		{
			Mode:               models.ModeHybrid,
			Query:              products[4].Title + " " + products[4].Description,
			ImagePath:          products[4].ImagePath,
			ExpectedProductIDs: []string{products[4].ProductID},
			Description:        "hybrid matching text and image",
		},
		{
			Mode:               models.ModeKeyword,
			Query:              "ceramic",
			ExpectedProductIDs: []string{products[1].ProductID, products[15].ProductID},
			Description:        "keyword term in multiple titles",
		},
		{
			Mode:               models.ModeKeyword,
			Query:              "herringbone",
			ExpectedProductIDs: []string{products[7].ProductID},
			Description:        "keyword term only in a description",
		},
		{
			Mode:               models.ModeHybrid,
			Query:              products[9].Title,
			ImagePath:          products[16].ImagePath,
			ExpectedProductIDs: []string{products[9].ProductID, products[16].ProductID},
			Description:        "hybrid with conflicting modalities returns both candidates",
		},
	}
	return cases
}
