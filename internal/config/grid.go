package config

import (
	"github.com/deppfellow/go-datatables/internal/datatables"
	"github.com/deppfellow/go-datatables/internal/queryset/sqlset"
)

// GridConfig declares one grid: the relation it reads from and how
// DataTables requests are mapped onto it.
//
//	grids:
//	  invoices:
//	    table:
//	      from: invoices i JOIN customers c ON c.id = i.customer_id
//	      fields:
//	        id: i.id
//	        customer__name: c.name
//	      default_order: id
//	    column_remapping:
//	      - customer: [customer.name, customer.email]
//	    coercion:
//	      columns: [paid]
type GridConfig struct {
	Table             sqlset.Table     `koanf:"table" validate:"required"`
	ColumnRemapping   []map[string]any `koanf:"column_remapping"`
	AdditionalColumns []string         `koanf:"additional_columns"`
	Coercion          CoercionConfig   `koanf:"coercion"`
	DefaultLength     int              `koanf:"default_length" validate:"min=0"`
	MaxLength         int              `koanf:"max_length" validate:"min=0"`
}

// CoercionConfig controls boolean coercion of per-column searches. It is on
// unless enabled is set to false; with no rules the default yes/paid/no/un
// policy applies.
type CoercionConfig struct {
	Enabled *bool                     `koanf:"enabled"`
	Columns []string                  `koanf:"columns"`
	Rules   []datatables.CoercionRule `koanf:"rules" validate:"dive"`
}

// Options converts the grid definition into adapter options.
func (g GridConfig) Options() (datatables.Options, error) {
	remap, err := datatables.ParseRemapping(g.ColumnRemapping)
	if err != nil {
		return datatables.Options{}, err
	}

	opts := datatables.Options{
		Remapping:         remap,
		AdditionalColumns: g.AdditionalColumns,
		DefaultLength:     g.DefaultLength,
		MaxLength:         g.MaxLength,
	}
	if g.Coercion.Enabled == nil || *g.Coercion.Enabled {
		c := datatables.DefaultCoercion()
		if len(g.Coercion.Rules) > 0 {
			c.Rules = g.Coercion.Rules
		}
		c.Columns = g.Coercion.Columns
		opts.Coercion = c
	}
	return opts, nil
}
