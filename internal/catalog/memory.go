package catalog

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a simple in-process catalog for local/dev use.
type MemoryStore struct {
	mu       sync.RWMutex
	products []Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewSeededMemoryStore returns an in-memory catalog preloaded with a small
// demo assortment so the assistant answers something useful without a
// database.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.Add(seedProducts()...)
	return s
}

func (s *MemoryStore) Add(products ...Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, products...)
}

func (s *MemoryStore) Search(_ context.Context, tokens []string, limit int) ([]Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Product
	for _, p := range s.products {
		if matchesAny(p, tokens) {
			out = append(out, p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func matchesAny(p Product, tokens []string) bool {
	fields := []string{p.Name, p.Description, p.Keywords, p.Category, p.Brand, p.Address, p.OpeningHours}
	for _, token := range tokens {
		for _, f := range fields {
			if f == "" {
				continue
			}
			if strings.Contains(strings.ToLower(f), token) {
				return true
			}
		}
	}
	return false
}

func seedProducts() []Product {
	return []Product{
		{
			Name:        "Sữa tươi Vinamilk 100% 1L",
			Price:       32000,
			HasPrice:    true,
			Description: "Sữa tươi tiệt trùng nguyên chất",
			Promotion:   "Mua 2 tặng 1 hộp 180ml",
			Category:    "Sữa và chế phẩm từ sữa",
			Brand:       "Vinamilk",
			Keywords:    "sua tuoi vinamilk sữa tươi",
		},
		{
			Name:        "Sữa tươi TH True Milk có đường 1L",
			Price:       35000,
			HasPrice:    true,
			Description: "Sữa tươi sạch từ trang trại TH",
			Category:    "Sữa và chế phẩm từ sữa",
			Brand:       "TH True Milk",
			Keywords:    "sua tuoi th true milk sữa tươi",
		},
		{
			Name:        "Raspberry Pi 4 Model B 4GB",
			Price:       1550000,
			HasPrice:    true,
			Description: "Máy tính nhúng cho dự án điện tử",
			Category:    "Thiết bị điện tử",
			Brand:       "Raspberry Pi",
			Keywords:    "raspberry pi may tinh nhung",
		},
		{
			Name:        "Cảm biến nhiệt độ độ ẩm DHT22",
			Price:       85000,
			HasPrice:    true,
			Description: "Cảm biến nhiệt độ và độ ẩm cho Arduino",
			Category:    "Linh kiện điện tử",
			Keywords:    "cam bien dht22 arduino cảm biến",
		},
		{
			Name:         "Siêu thị ABC - Chi nhánh Quận 1",
			Address:      "123 Lê Lợi, Quận 1, TP. Hồ Chí Minh",
			OpeningHours: "7:00 - 22:00 hàng ngày",
			Keywords:     "dia chi cua hang sieu thi địa chỉ cửa hàng",
		},
	}
}
