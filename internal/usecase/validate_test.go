package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw-com/nw-patrol/internal/domain"
)

func TestRequestValidator_ValidateCreate(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name    string
		mutate  func(*domain.CreateUserInput)
		wantMsg string
	}{
		{name: "valid", mutate: func(*domain.CreateUserInput) {}},
		{name: "missing password", mutate: func(in *domain.CreateUserInput) { in.Password = "" }, wantMsg: "invalid fields: password"},
		{name: "blank role", mutate: func(in *domain.CreateUserInput) { in.Role = "  " }, wantMsg: "invalid fields: role"},
		{name: "missing name and title", mutate: func(in *domain.CreateUserInput) { in.Name = ""; in.Title = "" }, wantMsg: "invalid fields: name, title"},
		{name: "empty community entry", mutate: func(in *domain.CreateUserInput) { in.Communities = []string{"north", ""} }, wantMsg: "invalid fields: communities"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			tt.mutate(&in)

			err := v.ValidateCreate(&in)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.KindInvalidArgument, de.Kind)
			assert.Equal(t, tt.wantMsg, de.Message)
		})
	}
}

func TestRequestValidator_DefaultsCommunities(t *testing.T) {
	v := NewRequestValidator()

	create := validCreateInput()
	create.Communities = nil
	require.NoError(t, v.ValidateCreate(&create))
	assert.Equal(t, []string{}, create.Communities)

	update := validUpdateInput("8D1C2B7E-3F4A-4E6B-9A0C-1D2E3F4A5B6C")
	update.Communities = nil
	require.NoError(t, v.ValidateUpdate(&update))
	assert.Equal(t, []string{}, update.Communities)
	assert.Equal(t, "8d1c2b7e-3f4a-4e6b-9a0c-1d2e3f4a5b6c", update.ID)
}

func TestRequestValidator_ValidateDelete(t *testing.T) {
	v := NewRequestValidator()

	assert.NoError(t, v.ValidateDelete(&domain.DeleteUserInput{ID: "8d1c2b7e-3f4a-4e6b-9a0c-1d2e3f4a5b6c"}))

	err := v.ValidateDelete(&domain.DeleteUserInput{})
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	err = v.ValidateDelete(&domain.DeleteUserInput{ID: "../etc/passwd"})
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestRequestValidator_TrimsEmail(t *testing.T) {
	v := NewRequestValidator()

	in := validCreateInput()
	in.Email = "  padded@example.com \n"
	require.NoError(t, v.ValidateCreate(&in))
	assert.Equal(t, "padded@example.com", in.Email)
}
