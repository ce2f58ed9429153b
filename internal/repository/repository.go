// Package repository builds the querysets grids read from.
package repository
