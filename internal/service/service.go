// Package service contains the business logic.
//
// It sits between the handler and repository layers.
// It receives validated data from the handler, runs DataTables
// requests against the grids the repository layer exposes and
// turns data-layer failures into HTTP errors.
package service
