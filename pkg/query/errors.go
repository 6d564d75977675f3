package query

import "errors"

// ErrUnsortable indicates a sort field outside the projection's sortable set.
var ErrUnsortable = errors.New("field is not sortable")
