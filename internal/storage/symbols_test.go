package storage

import (
	"testing"

	apperrors "github.com/paper-trader/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain ticker", input: "AAPL", want: "AAPL"},
		{name: "lowercase normalized", input: "aapl", want: "AAPL"},
		{name: "surrounding whitespace", input: "  msft ", want: "MSFT"},
		{name: "class share dot", input: "brk.b", want: "BRK.B"},
		{name: "class share hyphen", input: "BF-B", want: "BF-B"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "too long", input: "ABCDEFGHIJK", wantErr: true},
		{name: "embedded space", input: "AA PL", wantErr: true},
		{name: "sql metacharacters", input: "AAPL;--", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSymbol(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var catErr *apperrors.CategorizedError
				require.ErrorAs(t, err, &catErr)
				assert.Equal(t, "INVALID_SYMBOL", catErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
