package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"transcribe-jobs/internal/domain/model"
)

// printJSON writes v indented; raw JSON keeps its key order.
func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			_, err = fmt.Fprintln(w, string(raw))
			return err
		}
		_, err := fmt.Fprintln(w, buf.String())
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func textViewValue(v model.TextView) any {
	if v.Mode == model.TextBlock {
		return map[string]string{"text": v.Text}
	}
	if v.Segments == nil {
		return []model.Segment{}
	}
	return v.Segments
}
