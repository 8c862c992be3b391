package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterValidators(v))
	return v
}

func intPtr(n int) *int { return &n }

func TestMinTableValidation(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name  string
		value *int
		ok    bool
	}{
		{"未设置", nil, true},
		{"下限", intPtr(3), true},
		{"上限", intPtr(15), true},
		{"过小", intPtr(2), false},
		{"过大", intPtr(16), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(RebalanceRequest{MinParticipantsPerTable: tt.value})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, "min_participants_per_table 必须在 3-15 之间", ValidationMessage(err))
			}
		})
	}
}

func TestJoinCodeAndNotBlank(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(GuestJoinRequest{JoinCode: "AB12CD"}))
	err := v.Struct(GuestJoinRequest{JoinCode: "AB-12"})
	require.Error(t, err)
	assert.Equal(t, "加入码格式不正确", ValidationMessage(err))

	err = v.Struct(CreateTopicRequest{Title: "    "})
	require.Error(t, err)
	assert.Equal(t, "title 不能为空白", ValidationMessage(err))
}

func TestSetPreferencesRequest_DistinctChoices(t *testing.T) {
	v := newValidator(t)
	id := "7b0f3a5e-5d3c-4c1e-9a55-0d7f2b8f4c11"
	other := "c2a1e7f0-1b7d-4c55-8d4e-6a3f2b1c0d9e"

	assert.NoError(t, v.Struct(SetPreferencesRequest{FirstChoiceTopicID: &id, SecondChoiceTopicID: &other}))
	assert.Error(t, v.Struct(SetPreferencesRequest{FirstChoiceTopicID: &id, SecondChoiceTopicID: &id}))
}

func TestPagination(t *testing.T) {
	p := PaginationRequest{}
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 20, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())

	p = PaginationRequest{Page: 3, PageSize: 10}
	assert.Equal(t, 20, p.GetOffset())
}

func TestValidationMessage_NonValidatorError(t *testing.T) {
	assert.Equal(t, "参数校验失败", ValidationMessage(assert.AnError))
}
