package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"admin", "client", "partner"} {
		r, ok := ParseRole(s)
		assert.True(t, ok, s)
		assert.Equal(t, Role(s), r)
	}
	_, ok := ParseRole("superuser")
	assert.False(t, ok)
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleAdmin.Can(CapManagePartners))
	assert.False(t, RoleClient.Can(CapManagePartners))
	assert.False(t, RolePartner.Can(CapManagePartners))

	assert.True(t, RolePartner.Can(CapViewOwnReferrals))
	assert.False(t, RoleClient.Can(CapViewOwnReferrals))

	assert.False(t, Role("ghost").Can(CapCreateOwnProjects))
}

func TestSelfRegistrableRoles(t *testing.T) {
	assert.True(t, RoleClient.SelfRegistrable())
	assert.True(t, RolePartner.SelfRegistrable())
	assert.False(t, RoleAdmin.SelfRegistrable())
}

func TestReferralTransitions(t *testing.T) {
	statuses := []ReferralStatus{ReferralStatusPending, ReferralStatusConverted, ReferralStatusPaid}
	allowed := map[[2]ReferralStatus]bool{
		{ReferralStatusPending, ReferralStatusConverted}: true,
		{ReferralStatusConverted, ReferralStatusPaid}:    true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]ReferralStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}
