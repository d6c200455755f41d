package query

// HeaderRows is the number of leading rows in an engine page that repeat the
// column labels instead of carrying data. They are dropped before mapping.
const HeaderRows = 1

// RowsFromPage maps the data rows of page onto its column labels. Values are
// matched by position; a row shorter than the label list yields nil for the
// missing trailing columns and extra values are ignored.
func RowsFromPage(executionID string, page Page) ([]Row, error) {
	if len(page.Columns) == 0 {
		return nil, &ResultShapeError{ExecutionID: executionID, Message: "no column metadata"}
	}
	rows := make([]Row, 0)
	if len(page.Rows) <= HeaderRows {
		return rows, nil
	}
	for _, values := range page.Rows[HeaderRows:] {
		row := make(Row, len(page.Columns))
		for i, column := range page.Columns {
			if i < len(values) {
				row[column] = values[i]
			} else {
				row[column] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
