package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dinetab/table-reservation/internal/model"
)

func TestCanModify(t *testing.T) {
	res := &model.Reservation{GuestName: "alice"}

	assert.True(t, CanModify(model.Principal{Username: "alice"}, res))
	assert.False(t, CanModify(model.Principal{Username: "bob"}, res))
	assert.True(t, CanModify(model.Principal{Username: "staff", IsEmployee: true}, res))
}

func TestCanCancel_MatchesModifyRights(t *testing.T) {
	res := &model.Reservation{GuestName: "alice"}

	assert.True(t, CanCancel(model.Principal{Username: "alice"}, res))
	assert.False(t, CanCancel(model.Principal{Username: "bob"}, res))
	assert.True(t, CanCancel(model.Principal{Username: "staff", IsEmployee: true}, res))
}

func TestCanComplete_EmployeeOnly(t *testing.T) {
	assert.False(t, CanComplete(model.Principal{Username: "alice"}))
	assert.True(t, CanComplete(model.Principal{Username: "staff", IsEmployee: true}))
}
