package common_test

import (
	"testing"

	"github.com/ogero/stremio-urn3/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestValidateMetaID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr assert.ErrorAssertionFunc
	}{
		{"urn3:10876709", assert.NoError},
		{"urn3:0", assert.NoError},
		{"urn3:", assert.Error},
		{"urn3:10876709:0", assert.Error},
		{"urn3:abc", assert.Error},
		{"tt1234567", assert.Error},
		{"10876709", assert.Error},
		{"", assert.Error},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := common.ValidateMetaID(tt.id)
			tt.wantErr(t, err)
		})
	}
}

func TestValidateVideoID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr assert.ErrorAssertionFunc
	}{
		{"urn3:10876709:0", assert.NoError},
		{"urn3:10876709:2", assert.NoError},
		{"urn3:10876709:B", assert.NoError},
		{"urn3:10876709", assert.Error},
		{"urn3:10876709:", assert.Error},
		{"urn3:10876709:1:2", assert.Error},
		{"urn3::1", assert.Error},
		{"", assert.Error},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := common.ValidateVideoID(tt.id)
			tt.wantErr(t, err)
		})
	}
}

func TestValidateType(t *testing.T) {
	tests := []struct {
		t       string
		wantErr assert.ErrorAssertionFunc
	}{
		{"movie", assert.NoError},
		{"series", assert.NoError},
		{"channel", assert.Error},
		{"", assert.Error},
	}

	for _, tt := range tests {
		t.Run(tt.t, func(t *testing.T) {
			err := common.ValidateType(tt.t)
			tt.wantErr(t, err)
		})
	}
}
