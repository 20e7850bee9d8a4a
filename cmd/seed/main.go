package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/avolkau/lavka-backend/config"
	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Imports a catalog price list from an XLSX file. Expected columns:
// category | title | description | price | image_url
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, categories, err := readCatalogFromXLSX(filePath, categoryRepo)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Categories resolved: %d\n", categories)
	fmt.Printf("Total products to import: %d\n", len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	fmt.Printf("Starting bulk import with batch size: %d\n", batchSize)
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func readCatalogFromXLSX(filePath string, categoryRepo repository.CategoryRepository) ([]model.Product, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	fmt.Printf("Reading sheet: %s\n", sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	categoryIDs := make(map[string]uint)
	seenTitles := make(map[string]bool)
	skippedCount := 0

	for i, row := range rows {
		// First row is the header
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}

		if len(row) < 4 {
			skippedCount++
			continue
		}

		categoryTitle := strings.TrimSpace(row[0])
		title := strings.TrimSpace(row[1])
		description := strings.TrimSpace(row[2])
		priceRaw := strings.TrimSpace(row[3])

		var imageURL string
		if len(row) > 4 {
			imageURL = strings.TrimSpace(row[4])
		}

		if categoryTitle == "" || title == "" || seenTitles[title] {
			skippedCount++
			continue
		}

		price, err := strconv.ParseFloat(strings.ReplaceAll(priceRaw, ",", "."), 64)
		if err != nil || price < 0 {
			fmt.Printf("Row %d: invalid price %q, skipping\n", i+1, priceRaw)
			skippedCount++
			continue
		}

		categoryID, err := resolveCategory(categoryRepo, categoryIDs, categoryTitle)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resolve category %q: %w", categoryTitle, err)
		}

		seenTitles[title] = true
		products = append(products, model.Product{
			Title:       title,
			Description: description,
			Price:       price,
			CategoryID:  categoryID,
			ImageURL:    imageURL,
		})
	}

	if skippedCount > 0 {
		fmt.Printf("Skipped %d rows\n", skippedCount)
	}

	return products, len(categoryIDs), nil
}

// resolveCategory finds or creates the category, caching IDs per run
func resolveCategory(categoryRepo repository.CategoryRepository, cache map[string]uint, title string) (uint, error) {
	if id, ok := cache[title]; ok {
		return id, nil
	}

	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))

	existing, err := categoryRepo.FindBySlug(slug)
	if err == nil {
		cache[title] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	category := &model.Category{Title: title, Slug: slug}
	if err := categoryRepo.Create(category); err != nil {
		return 0, err
	}
	cache[title] = category.ID
	return category.ID, nil
}
