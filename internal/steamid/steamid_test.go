package steamid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    SteamID
		want64  uint64
		wantErr bool
	}{
		{in: "STEAM_0:0:123", want: SteamID{Account: 123}, want64: 76561197960265974},
		{in: "STEAM_0:1:4491990", want: SteamID{Parity: 1, Account: 4491990}, want64: 76561197969249709},
		{in: "STEAM_1:1:0", want: SteamID{Universe: 1, Parity: 1}, want64: 76561197960265729},
		{in: "STEAM_6:0:1", wantErr: true},
		{in: "STEAM_0:2:1", wantErr: true},
		{in: "STEAM_0:0", wantErr: true},
		{in: "[U:1:123]", wantErr: true},
		{in: "STEAM_0:0:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := Parse(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.want64, id.SteamID64())
			assert.Equal(t, tt.in, id.String())
		})
	}
}
