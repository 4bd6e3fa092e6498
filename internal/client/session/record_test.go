package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		want    Record
		wantErr bool
	}{
		{
			name:   "empty",
			values: map[string]string{},
			want:   Record{},
		},
		{
			name:   "signed in with numeric id",
			values: map[string]string{KeyToken: "abc", KeyUser: `{"id":1,"username":"farmer"}`, KeyRememberMe: "true"},
			want: Record{
				Token:      "abc",
				HasToken:   true,
				User:       &models.UserProfile{ID: "1", Username: "farmer"},
				RememberMe: true,
			},
		},
		{
			name:   "guest",
			values: map[string]string{KeyGuestMode: "true", KeyRememberMe: "false"},
			want:   Record{GuestMode: true},
		},
		{
			name:    "guest flag not a boolean",
			values:  map[string]string{KeyGuestMode: "1"},
			wantErr: true,
		},
		{
			name:    "remember flag not a boolean",
			values:  map[string]string{KeyToken: "abc", KeyRememberMe: "TRUE"},
			want:    Record{Token: "abc", HasToken: true},
			wantErr: true,
		},
		{
			name:    "user id is fractional",
			values:  map[string]string{KeyUser: `{"id":1.5}`},
			wantErr: true,
		},
		{
			name:    "user is not an object",
			values:  map[string]string{KeyUser: `"farmer"`},
			wantErr: true,
		},
		{
			name:    "empty token",
			values:  map[string]string{KeyToken: ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(tt.values)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCorruptRecord)
			} else {
				require.NoError(t, err)
			}
			if tt.want != (Record{}) || !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEncodeUser_Canonical(t *testing.T) {
	u := &models.UserProfile{ID: "7", Username: "farmer", Email: "f@growthfarm.test", Role: "farmer"}

	got, err := EncodeUser(u)
	require.NoError(t, err)
	assert.Equal(t, `{"email":"f@growthfarm.test","id":"7","role":"farmer","username":"farmer"}`, got)

	back, err := decodeUser(got)
	require.NoError(t, err)
	assert.Equal(t, u, back)
}

func TestEncodeUser_Nil(t *testing.T) {
	_, err := EncodeUser(nil)
	assert.Error(t, err)
}
