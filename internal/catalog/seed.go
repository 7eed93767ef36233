package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// Seed writes the demo catalog through w and returns the number of products
// written. Ids are assigned by the writer.
func Seed(ctx context.Context, w Writer) (int, error) {
	products := SeedProducts()
	for i := range products {
		if err := w.Upsert(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("seeding %q: %w", products[i].Name, err)
		}
	}
	return len(products), nil
}

// SeedProducts returns a fresh copy of the demo catalog.
func SeedProducts() []models.Product {
	return []models.Product{
		{
			Name:          "iPhone 15 Pro Max",
			Description:   "The most advanced iPhone ever with titanium design, A17 Pro chip, and revolutionary camera system with 5x telephoto zoom.",
			Price:         1199.00,
			Category:      "Smartphones",
			Brand:         "Apple",
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"A17 Pro Chip", "6.7-inch Display", "256GB Storage", "5G", "Triple Camera", "Titanium Build"},
		},
		{
			Name:          "iPhone 15 Pro",
			Description:   "Premium iPhone with A17 Pro chip, titanium design, and advanced camera system with 3x telephoto zoom.",
			Price:         999.00,
			Category:      "Smartphones",
			Brand:         "Apple",
			StockQuantity: 30,
			ImageURL:      "https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=400&h=400&fit=crop&crop=center",
			Rating:        4.7,
			Features:      []string{"A17 Pro Chip", "6.1-inch Display", "128GB Storage", "5G", "Triple Camera"},
		},
		{
			Name:          "Samsung Galaxy S24 Ultra",
			Description:   "Ultimate Android flagship with S Pen, 200MP camera, AI features, and titanium frame for productivity and creativity.",
			Price:         1299.00,
			Category:      "Smartphones",
			Brand:         "Samsung",
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1610945265064-0e34e5519bbf?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"S Pen", "200MP Camera", "6.8-inch Display", "512GB Storage", "AI Features", "Titanium Frame"},
		},
		{
			Name:          "Samsung Galaxy S24+",
			Description:   "Premium Android phone with advanced camera system, large display, and all-day battery life.",
			Price:         999.00,
			Category:      "Smartphones",
			Brand:         "Samsung",
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1565849904461-04a58ad377e0?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Triple Camera", "6.7-inch Display", "256GB Storage", "5G", "Fast Charging"},
		},
		{
			Name:          "Google Pixel 8 Pro",
			Description:   "AI-powered Android phone with computational photography, pure Android experience, and 7 years of updates.",
			Price:         999.00,
			Category:      "Smartphones",
			Brand:         "Google",
			StockQuantity: 18,
			ImageURL:      "https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=400&h=400&fit=crop&crop=center",
			Rating:        4.4,
			Features:      []string{"Tensor G3", "AI Photography", "6.7-inch Display", "128GB Storage", "Pure Android"},
		},
		{
			Name:          "OnePlus 12",
			Description:   "Flagship killer with Snapdragon 8 Gen 3, ultra-fast charging, and premium design at competitive price.",
			Price:         799.00,
			Category:      "Smartphones",
			Brand:         "OnePlus",
			StockQuantity: 22,
			ImageURL:      "https://images.unsplash.com/photo-1580910051074-3eb694886505?w=400&h=400&fit=crop&crop=center",
			Rating:        4.3,
			Features:      []string{"Snapdragon 8 Gen 3", "100W Fast Charging", "6.82-inch Display", "256GB Storage"},
		},
		{
			Name:          "Xiaomi 14 Ultra",
			Description:   "Photography-focused flagship with Leica cameras, premium materials, and flagship performance.",
			Price:         1099.00,
			Category:      "Smartphones",
			Brand:         "Xiaomi",
			StockQuantity: 15,
			ImageURL:      "https://images.unsplash.com/photo-1544244015-0df4b3ffc6b0?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Leica Cameras", "Snapdragon 8 Gen 3", "6.73-inch Display", "512GB Storage"},
		},
		{
			Name:          "iPhone 14",
			Description:   "Reliable iPhone with A15 Bionic chip, excellent cameras, and all-day battery life.",
			Price:         699.00,
			Category:      "Smartphones",
			Brand:         "Apple",
			StockQuantity: 35,
			ImageURL:      "https://images.unsplash.com/photo-1678685363222-0de41c4f8b03?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"A15 Bionic", "6.1-inch Display", "128GB Storage", "Dual Camera"},
		},
		{
			Name:          "Samsung Galaxy A54",
			Description:   "Mid-range smartphone with flagship features, excellent camera, and long-lasting battery.",
			Price:         449.00,
			Category:      "Smartphones",
			Brand:         "Samsung",
			StockQuantity: 40,
			ImageURL:      "https://images.unsplash.com/photo-1605236453806-6ff36851218e?w=400&h=400&fit=crop&crop=center",
			Rating:        4.2,
			Features:      []string{"50MP Camera", "6.4-inch Display", "128GB Storage", "5000mAh Battery"},
		},
		{
			Name:          "Google Pixel 7a",
			Description:   "Affordable Pixel with flagship camera features, clean Android, and guaranteed updates.",
			Price:         499.00,
			Category:      "Smartphones",
			Brand:         "Google",
			StockQuantity: 30,
			ImageURL:      "https://images.unsplash.com/photo-1574944985070-8f3ebc6b79d2?w=400&h=400&fit=crop&crop=center",
			Rating:        4.3,
			Features:      []string{"Tensor G2", "AI Photography", "6.1-inch Display", "128GB Storage"},
		},
		{
			Name:          "MacBook Pro 16-inch M3 Max",
			Description:   "Most powerful MacBook ever with M3 Max chip, stunning Liquid Retina XDR display, and up to 22 hours battery life.",
			Price:         3199.00,
			Category:      "Laptops",
			Brand:         "Apple",
			StockQuantity: 10,
			ImageURL:      "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=400&h=400&fit=crop&crop=center",
			Rating:        4.9,
			Features:      []string{"M3 Max Chip", "16-inch Display", "1TB SSD", "36GB RAM", "All-day Battery"},
		},
		{
			Name:          "MacBook Pro 14-inch M3",
			Description:   "Professional laptop with M3 chip, brilliant Liquid Retina XDR display, and incredible performance.",
			Price:         1999.00,
			Category:      "Laptops",
			Brand:         "Apple",
			StockQuantity: 15,
			ImageURL:      "https://images.unsplash.com/photo-1541807084-5c52b6b3adef?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"M3 Chip", "14-inch Display", "512GB SSD", "18GB RAM", "Touch Bar"},
		},
		{
			Name:          "MacBook Air 15-inch M3",
			Description:   "Incredibly thin and light laptop with M3 chip, 15-inch display, and up to 18 hours battery life.",
			Price:         1299.00,
			Category:      "Laptops",
			Brand:         "Apple",
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1496181133206-80ce9b88a853?w=400&h=400&fit=crop&crop=center",
			Rating:        4.7,
			Features:      []string{"M3 Chip", "15-inch Display", "256GB SSD", "8GB RAM", "Ultra-thin"},
		},
		{
			Name:          "Dell XPS 15",
			Description:   "Premium Windows laptop with stunning InfinityEdge display, powerful performance, and sleek design.",
			Price:         1899.00,
			Category:      "Laptops",
			Brand:         "Dell",
			StockQuantity: 18,
			ImageURL:      "https://images.unsplash.com/photo-1588872657578-7efd1f1555ed?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Intel i7", "15.6-inch 4K Display", "512GB SSD", "16GB RAM", "NVIDIA GTX"},
		},
		{
			Name:          "HP Spectre x360",
			Description:   "Convertible laptop with 360-degree hinge, premium design, and versatile performance.",
			Price:         1299.00,
			Category:      "Laptops",
			Brand:         "HP",
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1603302576837-37561b2e2302?w=400&h=400&fit=crop&crop=center",
			Rating:        4.4,
			Features:      []string{"Intel i7", "13.5-inch Touchscreen", "512GB SSD", "16GB RAM", "2-in-1 Design"},
		},
		{
			Name:          "ASUS ROG Strix G15",
			Description:   "Gaming laptop with powerful RTX graphics, high refresh rate display, and advanced cooling.",
			Price:         1599.00,
			Category:      "Laptops",
			Brand:         "ASUS",
			StockQuantity: 15,
			ImageURL:      "https://images.unsplash.com/photo-1593642702821-c8da6771f0c6?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"AMD Ryzen 7", "RTX 4060", "15.6-inch 144Hz", "1TB SSD", "RGB Keyboard"},
		},
		{
			Name:          "Lenovo ThinkPad X1 Carbon",
			Description:   "Business ultrabook with military-grade durability, excellent keyboard, and enterprise security.",
			Price:         1799.00,
			Category:      "Laptops",
			Brand:         "Lenovo",
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1484788984921-03950022c9ef?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Intel i7", "14-inch Display", "512GB SSD", "16GB RAM", "MIL-STD Tested"},
		},
		{
			Name:          "Microsoft Surface Laptop 5",
			Description:   "Elegant Windows laptop with premium materials, excellent display, and all-day battery.",
			Price:         1299.00,
			Category:      "Laptops",
			Brand:         "Microsoft",
			StockQuantity: 22,
			ImageURL:      "https://images.unsplash.com/photo-1561049933-6e9c10cf8b48?w=400&h=400&fit=crop&crop=center",
			Rating:        4.3,
			Features:      []string{"Intel i7", "13.5-inch Touchscreen", "256GB SSD", "8GB RAM", "Premium Design"},
		},
		{
			Name:          "iPad Pro 12.9-inch M4",
			Description:   "Ultimate iPad with M4 chip, stunning Liquid Retina XDR display, and Apple Pencil Pro support.",
			Price:         1099.00,
			Category:      "Tablets",
			Brand:         "Apple",
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1544244015-0df4b3ffc6b0?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"M4 Chip", "12.9-inch Display", "256GB Storage", "Apple Pencil Pro", "Face ID"},
		},
		{
			Name:          "iPad Air 11-inch M2",
			Description:   "Powerful and portable iPad with M2 chip, beautiful display, and all-day battery life.",
			Price:         599.00,
			Category:      "Tablets",
			Brand:         "Apple",
			StockQuantity: 30,
			ImageURL:      "https://images.unsplash.com/photo-1607592793995-f81c7cca8d3b?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"M2 Chip", "11-inch Display", "128GB Storage", "Apple Pencil", "Touch ID"},
		},
		{
			Name:          "Samsung Galaxy Tab S9 Ultra",
			Description:   "Premium Android tablet with massive display, S Pen included, and desktop-class performance.",
			Price:         1199.00,
			Category:      "Tablets",
			Brand:         "Samsung",
			StockQuantity: 15,
			ImageURL:      "https://images.unsplash.com/photo-1544244015-0df4b3ffc6b0?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Snapdragon 8 Gen 2", "14.6-inch Display", "256GB Storage", "S Pen Included"},
		},
		{
			Name:          "Microsoft Surface Pro 9",
			Description:   "2-in-1 tablet and laptop with Windows 11, detachable keyboard, and Surface Pen support.",
			Price:         999.00,
			Category:      "Tablets",
			Brand:         "Microsoft",
			StockQuantity: 18,
			ImageURL:      "https://images.unsplash.com/photo-1567593810070-7a3d471af022?w=400&h=400&fit=crop&crop=center",
			Rating:        4.4,
			Features:      []string{"Intel i7", "13-inch Display", "256GB SSD", "Windows 11", "Detachable Keyboard"},
		},
		{
			Name:          "AirPods Pro 2nd Gen",
			Description:   "Premium wireless earbuds with active noise cancellation, spatial audio, and MagSafe charging.",
			Price:         249.00,
			Category:      "Headphones",
			Brand:         "Apple",
			StockQuantity: 50,
			ImageURL:      "https://images.unsplash.com/photo-1606220588913-b3aacb4d2f46?w=400&h=400&fit=crop&crop=center",
			Rating:        4.7,
			Features:      []string{"Active Noise Cancellation", "Spatial Audio", "MagSafe Charging", "H2 Chip"},
		},
		{
			Name:          "Sony WH-1000XM5",
			Description:   "Industry-leading noise canceling headphones with premium sound quality and all-day comfort.",
			Price:         399.00,
			Category:      "Headphones",
			Brand:         "Sony",
			StockQuantity: 35,
			ImageURL:      "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"30-hour Battery", "Premium Noise Canceling", "LDAC Audio", "Touch Controls"},
		},
		{
			Name:          "Bose QuietComfort Ultra",
			Description:   "World-class noise cancellation with immersive spatial audio and premium comfort.",
			Price:         429.00,
			Category:      "Headphones",
			Brand:         "Bose",
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1583394838336-acd977736f90?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"Immersive Audio", "World-Class ANC", "24-hour Battery", "Premium Materials"},
		},
		{
			Name:          "Samsung Galaxy Buds2 Pro",
			Description:   "Premium wireless earbuds with intelligent ANC, 360 Audio, and seamless Galaxy integration.",
			Price:         229.00,
			Category:      "Headphones",
			Brand:         "Samsung",
			StockQuantity: 40,
			ImageURL:      "https://images.unsplash.com/photo-1590658165737-15109934e1d4?w=400&h=400&fit=crop&crop=center",
			Rating:        4.4,
			Features:      []string{"Intelligent ANC", "360 Audio", "IPX7 Rating", "Galaxy Integration"},
		},
		{
			Name:          "Apple Watch Series 9",
			Description:   "Most advanced Apple Watch with S9 chip, Double Tap gesture, and comprehensive health tracking.",
			Price:         399.00,
			Category:      "Smartwatches",
			Brand:         "Apple",
			StockQuantity: 45,
			ImageURL:      "https://images.unsplash.com/photo-1551698618-1dfe5d97d256?w=400&h=400&fit=crop&crop=center",
			Rating:        4.7,
			Features:      []string{"S9 Chip", "Double Tap", "Health Tracking", "Always-On Display", "GPS"},
		},
		{
			Name:          "Samsung Galaxy Watch6 Classic",
			Description:   "Premium smartwatch with rotating bezel, advanced health monitoring, and elegant design.",
			Price:         429.00,
			Category:      "Smartwatches",
			Brand:         "Samsung",
			StockQuantity: 30,
			ImageURL:      "https://images.unsplash.com/photo-1579586337278-3f436f25d4d6?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Rotating Bezel", "Health Monitoring", "GPS", "Sleep Tracking", "Stainless Steel"},
		},
		{
			Name:          "PlayStation 5",
			Description:   "Next-gen gaming console with ultra-high speed SSD, ray tracing, and immersive haptic feedback.",
			Price:         499.00,
			Category:      "Gaming",
			Brand:         "Sony",
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1606144042614-b2417e99c4e3?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"Ultra-High Speed SSD", "Ray Tracing", "Haptic Feedback", "4K Gaming", "Tempest 3D"},
		},
		{
			Name:          "Xbox Series X",
			Description:   "Most powerful Xbox ever with 4K gaming, quick resume, and Smart Delivery technology.",
			Price:         499.00,
			Category:      "Gaming",
			Brand:         "Microsoft",
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1621259182978-fbf93132d53d?w=400&h=400&fit=crop&crop=center",
			Rating:        4.7,
			Features:      []string{"4K Gaming", "Quick Resume", "Smart Delivery", "1TB SSD", "Game Pass"},
		},
		{
			Name:          "Nintendo Switch OLED",
			Description:   "Hybrid gaming console with vibrant OLED screen, enhanced audio, and versatile play modes.",
			Price:         349.00,
			Category:      "Gaming",
			Brand:         "Nintendo",
			StockQuantity: 35,
			ImageURL:      "https://images.unsplash.com/photo-1606144042614-b2417e99c4e3?w=400&h=400&fit=crop&crop=center",
			Rating:        4.6,
			Features:      []string{"7-inch OLED Screen", "Enhanced Audio", "Portable Gaming", "64GB Storage"},
		},
		{
			Name:          "The Psychology of Programming",
			Description:   "Essential guide to understanding how programmers think and work, with practical insights for better coding.",
			Price:         29.99,
			Category:      "Books",
			Brand:         "TechBooks",
			StockQuantity: 100,
			ImageURL:      "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400&h=400&fit=crop&crop=center",
			Rating:        4.5,
			Features:      []string{"Programming Psychology", "Developer Insights", "Best Practices", "Career Development"},
		},
		{
			Name:          "Clean Code: A Handbook",
			Description:   "Learn to write clean, maintainable code with practical examples and proven techniques.",
			Price:         34.99,
			Category:      "Books",
			Brand:         "TechBooks",
			StockQuantity: 85,
			ImageURL:      "https://images.unsplash.com/photo-1481627834876-b7833e8f5570?w=400&h=400&fit=crop&crop=center",
			Rating:        4.8,
			Features:      []string{"Clean Code Principles", "Refactoring", "Best Practices", "Code Quality"},
		},
		{
			Name:          "Premium Cotton T-Shirt",
			Description:   "Ultra-soft premium cotton t-shirt with perfect fit and lasting comfort for everyday wear.",
			Price:         29.99,
			Category:      "Clothing",
			Brand:         "ComfortWear",
			StockQuantity: 200,
			ImageURL:      "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400&h=400&fit=crop&crop=center",
			Rating:        4.3,
			Features:      []string{"100% Cotton", "Pre-shrunk", "Multiple Colors", "Comfortable Fit"},
		},
		{
			Name:          "Athletic Performance Hoodie",
			Description:   "Moisture-wicking hoodie perfect for workouts and casual wear with modern athletic design.",
			Price:         59.99,
			Category:      "Clothing",
			Brand:         "ActiveWear",
			StockQuantity: 150,
			ImageURL:      "https://images.unsplash.com/photo-1556821840-3a9cafe55112?w=400&h=400&fit=crop&crop=center",
			Rating:        4.4,
			Features:      []string{"Moisture-wicking", "Athletic Fit", "Kangaroo Pocket", "Drawstring Hood"},
		},
	}
}

// Open returns the store selected by cfg.Backend. Memory stores start empty.
func Open(ctx context.Context, cfg config.CatalogConfig, cbCfg config.CircuitBreakerConfig, logger *zap.Logger) (Store, error) {
	if cfg.Backend == "memory" {
		return NewMemory(), nil
	}
	return OpenSQL(ctx, cfg, cbCfg, logger)
}

// SeedIfEmpty seeds s with the demo catalog unless it already holds
// products. It reports how many products were written.
func SeedIfEmpty(ctx context.Context, s Store) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return Seed(ctx, s)
}

// All pages through the whole catalog.
func All(ctx context.Context, b Browser) ([]models.Product, error) {
	var out []models.Product
	for page := 1; ; page++ {
		products, total, err := b.List(ctx, "", page, 100)
		if err != nil {
			return nil, fmt.Errorf("listing catalog page %d: %w", page, err)
		}
		out = append(out, products...)
		if len(products) == 0 || len(out) >= total {
			return out, nil
		}
	}
}
