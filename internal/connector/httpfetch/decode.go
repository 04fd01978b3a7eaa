package httpfetch

import (
	"encoding/json"
	"fmt"
	"io"
)

func decodeJSON(body io.Reader, out any) error {
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
