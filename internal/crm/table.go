package crm

// Column declares one table column: the attribute it reads and the label
// the rendering layer shows.
type Column struct {
	Key    string `json:"key"`
	Header string `json:"header"`
}

// Row is one rendered table row. Cells line up with the declared headers.
type Row struct {
	ID    string        `json:"id"`
	Cells []interface{} `json:"cells"`
}

// Table is the record set shaped for tabular display. This is the boundary
// to the presentation layer: column order and per-row cell order match the
// declared headers exactly.
type Table struct {
	Headers []Column `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// BuildTable shapes a record set into rows and headers. The "id" column key
// reads the business id; every other key reads the attribute of that name,
// with nil for absent values so cell positions stay aligned.
func BuildTable(set *RecordSet, columns []Column) *Table {
	table := &Table{
		Headers: columns,
		Rows:    make([]Row, 0, set.Len()),
	}

	for _, record := range set.Records() {
		cells := make([]interface{}, len(columns))
		for i, column := range columns {
			if column.Key == "id" {
				cells[i] = record.ID
				continue
			}
			cells[i] = record.Attr(column.Key)
		}
		table.Rows = append(table.Rows, Row{ID: record.ID, Cells: cells})
	}
	return table
}
