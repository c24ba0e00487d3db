package domain

import (
	"errors"
	"testing"
)

func widget() Product {
	return Product{
		ID:            "p-1",
		Name:          "Widget",
		SKU:           "W-1",
		Category:      "Hardware",
		Price:         9.5,
		StockQuantity: 25,
		Description:   "a widget",
		IsActive:      true,
	}
}

func TestApplyPatch_MergesFields(t *testing.T) {
	got, err := ApplyPatch(widget(), Patch{"stock_quantity": 15, "name": "Widget v2"})
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if got.StockQuantity != 15 {
		t.Errorf("StockQuantity = %d, want 15", got.StockQuantity)
	}
	if got.Name != "Widget v2" {
		t.Errorf("Name = %q, want %q", got.Name, "Widget v2")
	}
	if got.SKU != "W-1" {
		t.Errorf("SKU changed to %q", got.SKU)
	}
}

func TestApplyPatch_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"unknown field", Patch{"colour": "red"}},
		{"identity field", Patch{"id": "other"}},
		{"timestamp field", Patch{"created_at": "2024-01-01T00:00:00Z"}},
		{"wrong type", Patch{"stock_quantity": "lots"}},
		{"fractional quantity", Patch{"stock_quantity": 1.5}},
		{"negative quantity", Patch{"stock_quantity": -1}},
		{"blank name", Patch{"name": "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPatch(widget(), tt.patch)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestListParams_Normalize(t *testing.T) {
	p, err := ListParams{}.Normalize(Products)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Page != 1 || p.Limit != DefaultPageSize {
		t.Errorf("defaults = page %d limit %d", p.Page, p.Limit)
	}
	if p.SortBy != FieldCreatedAt || !p.Descending() {
		t.Errorf("default sort = %s %s, want created_at desc", p.SortBy, p.SortOrder)
	}

	p, _ = ListParams{Limit: 1000, Page: 3}.Normalize(Products)
	if p.Limit != MaxPageSize {
		t.Errorf("Limit = %d, want %d", p.Limit, MaxPageSize)
	}
	if p.Offset() != 2*MaxPageSize {
		t.Errorf("Offset = %d", p.Offset())
	}

	if _, err := (ListParams{SortBy: "description"}).Normalize(Products); !IsValidation(err) {
		t.Errorf("sorting by description should be rejected, got %v", err)
	}
	if _, err := (ListParams{SortOrder: "sideways"}).Normalize(Products); !IsValidation(err) {
		t.Errorf("bad sort order should be rejected, got %v", err)
	}
}

func TestNewPage_TotalPages(t *testing.T) {
	page := NewPage[Product](nil, 21, ListParams{Page: 1, Limit: 10})
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
	if page.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}

func TestTransient_WrapsOnce(t *testing.T) {
	base := errors.New("connection reset")
	err := Transient(Transient(base))
	if !IsTransient(err) || !errors.Is(err, base) {
		t.Errorf("Transient lost its causes: %v", err)
	}
	if Transient(nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
}

func TestSupplier_Validate(t *testing.T) {
	s := Supplier{Name: "Tech Corp", ContactPerson: "John", Email: "john.example.com", Phone: "1", Address: "x"}
	if err := s.Validate(); !IsValidation(err) {
		t.Errorf("email without @ should fail validation, got %v", err)
	}
	s.Email = "john@example.com"
	if err := s.Validate(); err != nil {
		t.Errorf("valid supplier rejected: %v", err)
	}
}

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"partial patch skips unpatched required fields", Patch{"stock_quantity": 3}, false},
		{"clearing an optional field", Patch{"description": ""}, false},
		{"empty", Patch{}, true},
		{"unknown field", Patch{"colour": "red"}, true},
		{"identity field", Patch{"id": "other"}, true},
		{"wrong type", Patch{"price": "cheap"}, true},
		{"negative quantity", Patch{"stock_quantity": -5}, true},
		{"negative price", Patch{"price": -0.5}, true},
		{"blank required field", Patch{"sku": " "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch[Product](tt.patch)
			if tt.wantErr && !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePatch_SupplierEmail(t *testing.T) {
	if err := ValidatePatch[Supplier](Patch{"email": "nobody"}); !IsValidation(err) {
		t.Errorf("email without @ should fail validation, got %v", err)
	}
	if err := ValidatePatch[Supplier](Patch{"phone": "555"}); err != nil {
		t.Errorf("phone-only patch rejected: %v", err)
	}
}

func TestMatchesSearch(t *testing.T) {
	doc := map[string]any{"name": "Steel Widget", "sku": "W-1", "price": 4.0}
	fields := []string{"name", "sku"}

	for search, want := range map[string]bool{
		"":       true,
		"widget": true,
		"w-1":    true,
		"gadget": false,
		"4":      false,
	} {
		if got := MatchesSearch(doc, fields, search); got != want {
			t.Errorf("MatchesSearch(%q) = %v, want %v", search, got, want)
		}
	}
}
