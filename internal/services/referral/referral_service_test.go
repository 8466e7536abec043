package referral

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/softwarepar/backend/internal/database/dbtest"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) SendToUser(userID uint, message interface{}) int {
	args := m.Called(userID, message)
	return args.Int(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendCommissionNotification(ctx context.Context, to, fullName string, amount models.Money, projectName string) error {
	args := m.Called(ctx, to, fullName, amount.String(), projectName)
	return args.Error(0)
}

type fixture struct {
	db        *gorm.DB
	svc       *ReferralService
	publisher *MockPublisher
	mailer    *MockMailer
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	publisher := &MockPublisher{}
	publisher.On("SendToUser", mock.Anything, mock.Anything).Return(1).Maybe()
	mailer := &MockMailer{}
	notifier := notification.NewNotificationService(db, publisher, zap.NewNop())
	return &fixture{
		db:        db,
		svc:       NewReferralService(db, notifier, mailer, zap.NewNop()),
		publisher: publisher,
		mailer:    mailer,
	}
}

func (f *fixture) user(t *testing.T, email string, role models.Role) *models.User {
	u := models.User{Email: email, Password: "hash", FullName: "User " + email, Role: role, IsActive: true}
	require.NoError(t, f.db.Create(&u).Error)
	return &u
}

func (f *fixture) partner(t *testing.T, email string, rate string) *models.Partner {
	u := f.user(t, email, models.RolePartner)
	p := models.Partner{
		UserID:         u.ID,
		ReferralCode:   fmt.Sprintf("PAR%dTEST", u.ID),
		CommissionRate: models.MustMoney(rate),
		TotalEarnings:  models.ZeroMoney(),
	}
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func (f *fixture) project(t *testing.T, clientID uint, price string) *models.Project {
	p := models.Project{Name: "Shop", Price: models.MustMoney(price), ClientID: clientID, Status: models.ProjectStatusPending}
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func TestCalculateCommissionRoundsToCents(t *testing.T) {
	assert.Equal(t, "250.00", CalculateCommission(models.MustMoney("1000"), models.MustMoney("25")).String())
	assert.Equal(t, "41.67", CalculateCommission(models.MustMoney("333.33"), models.MustMoney("12.5")).String())
	assert.Equal(t, "0.00", CalculateCommission(models.MustMoney("1000"), models.ZeroMoney()).String())
}

func TestCreateReferralStartsPending(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)

	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, r.Status)
	assert.Equal(t, "0.00", r.CommissionAmount.String())
	assert.Nil(t, r.ProjectID)
}

func TestCreateReferralRejectsSelfReferral(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")

	_, err := f.svc.CreateReferral(context.Background(), p.ID, p.UserID, nil)
	assert.True(t, errors.Is(err, ErrSelfReferral))
}

func TestCreateReferralRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)

	_, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateReferral(context.Background(), p.ID, c.ID, nil)
	assert.True(t, errors.Is(err, ErrDuplicateReferral))

	var count int64
	f.db.Model(&models.Referral{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateReferralUnknownPartnerOrClient(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")

	_, err := f.svc.CreateReferral(context.Background(), 999, p.UserID, nil)
	assert.True(t, errors.Is(err, ErrPartnerNotFound))

	_, err = f.svc.CreateReferral(context.Background(), p.ID, 999, nil)
	assert.True(t, errors.Is(err, ErrClientNotFound))
}

func TestConvertWithoutProjectFails(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)
	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Convert(context.Background(), r.ID)
	assert.True(t, errors.Is(err, ErrNoProject))
}

func TestConvertFixesCommission(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "1000.00")
	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, &proj.ID)
	require.NoError(t, err)

	converted, err := f.svc.Convert(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusConverted, converted.Status)
	assert.Equal(t, "250.00", converted.CommissionAmount.String())
	assert.NotNil(t, converted.ConvertedAt)

	var stored models.Referral
	require.NoError(t, f.db.Take(&stored, r.ID).Error)
	assert.Equal(t, models.ReferralStatusConverted, stored.Status)
	assert.Equal(t, "250.00", stored.CommissionAmount.String())

	// Later rate changes do not touch a converted commission.
	require.NoError(t, f.db.Model(&models.Partner{}).Where("id = ?", p.ID).Update("commission_rate", models.MustMoney("50")).Error)
	require.NoError(t, f.db.Take(&stored, r.ID).Error)
	assert.Equal(t, "250.00", stored.CommissionAmount.String())
}

func TestStateMachineRejectsOutOfOrderTransitions(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "1000.00")
	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, &proj.ID)
	require.NoError(t, err)

	_, err = f.svc.Settle(context.Background(), r.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "pending -> paid")

	f.mailer.On("SendCommissionNotification", mock.Anything, "p1@x.com", mock.Anything, "250.00", "Shop").Return(nil)

	_, err = f.svc.Convert(context.Background(), r.ID)
	require.NoError(t, err)
	_, err = f.svc.Convert(context.Background(), r.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "converted -> converted")

	_, err = f.svc.Settle(context.Background(), r.ID)
	require.NoError(t, err)
	_, err = f.svc.Settle(context.Background(), r.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "paid -> paid")
	_, err = f.svc.Convert(context.Background(), r.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "paid -> converted")

	_, err = f.svc.Convert(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrReferralNotFound))
}

func TestSettleCreditsPartnerExactlyOnce(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "12.50")
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "333.33")
	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, &proj.ID)
	require.NoError(t, err)
	_, err = f.svc.Convert(context.Background(), r.ID)
	require.NoError(t, err)

	f.mailer.On("SendCommissionNotification", mock.Anything, "p1@x.com", "User p1@x.com", "41.67", "Shop").Return(nil).Once()

	settled, err := f.svc.Settle(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPaid, settled.Status)
	assert.NotNil(t, settled.PaidAt)

	var stored models.Partner
	require.NoError(t, f.db.Take(&stored, p.ID).Error)
	assert.Equal(t, "41.67", stored.TotalEarnings.String())

	_, err = f.svc.Settle(context.Background(), r.ID)
	require.Error(t, err)
	require.NoError(t, f.db.Take(&stored, p.ID).Error)
	assert.Equal(t, "41.67", stored.TotalEarnings.String())

	var notes []models.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", p.UserID, models.NotificationTypeSuccess).Find(&notes).Error)
	assert.Len(t, notes, 1)
	f.mailer.AssertExpectations(t)
	f.publisher.AssertCalled(t, "SendToUser", p.UserID, mock.Anything)
}

func TestSettleSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "100.00")
	r, err := f.svc.CreateReferral(context.Background(), p.ID, c.ID, &proj.ID)
	require.NoError(t, err)
	_, err = f.svc.Convert(context.Background(), r.ID)
	require.NoError(t, err)

	f.mailer.On("SendCommissionNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	settled, err := f.svc.Settle(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPaid, settled.Status)
}

func TestListReferralsEnrichedNewestFirst(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "25.00")

	views, err := f.svc.ListReferrals(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)

	c1 := f.user(t, "c1@x.com", models.RoleClient)
	c2 := f.user(t, "c2@x.com", models.RoleClient)
	proj := f.project(t, c2.ID, "1500.00")
	_, err = f.svc.CreateReferral(context.Background(), p.ID, c1.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateReferral(context.Background(), p.ID, c2.ID, &proj.ID)
	require.NoError(t, err)

	views, err = f.svc.ListReferrals(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "c2@x.com", views[0].ClientEmail)
	require.NotNil(t, views[0].ProjectName)
	assert.Equal(t, "Shop", *views[0].ProjectName)
	require.NotNil(t, views[0].ProjectPrice)
	assert.Equal(t, "1500.00", views[0].ProjectPrice.String())

	assert.Equal(t, "c1@x.com", views[1].ClientEmail)
	assert.Equal(t, "User c1@x.com", views[1].ClientName)
	assert.Nil(t, views[1].ProjectName)
	assert.Nil(t, views[1].ProjectPrice)
}

func TestAttachProjectLinksOldestPendingReferral(t *testing.T) {
	f := newFixture(t)
	p1 := f.partner(t, "p1@x.com", "25.00")
	p2 := f.partner(t, "p2@x.com", "25.00")
	c := f.user(t, "c1@x.com", models.RoleClient)

	first, err := f.svc.CreateReferral(context.Background(), p1.ID, c.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateReferral(context.Background(), p2.ID, c.ID, nil)
	require.NoError(t, err)

	proj := f.project(t, c.ID, "500.00")
	attached, err := f.svc.AttachProjectWithTx(f.db, c.ID, proj)
	require.NoError(t, err)
	require.NotNil(t, attached)
	assert.Equal(t, first.ID, attached.ID)
	require.NotNil(t, proj.PartnerID)
	assert.Equal(t, p1.ID, *proj.PartnerID)

	var stored models.Project
	require.NoError(t, f.db.Take(&stored, proj.ID).Error)
	require.NotNil(t, stored.PartnerID)
	assert.Equal(t, p1.ID, *stored.PartnerID)

	found, err := f.svc.FindByProject(context.Background(), proj.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestAttachProjectWithoutReferralIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "500.00")

	attached, err := f.svc.AttachProjectWithTx(f.db, c.ID, proj)
	require.NoError(t, err)
	assert.Nil(t, attached)
	assert.Nil(t, proj.PartnerID)
}

func TestConvertForProject(t *testing.T) {
	f := newFixture(t)
	p := f.partner(t, "p1@x.com", "10.00")
	c := f.user(t, "c1@x.com", models.RoleClient)
	proj := f.project(t, c.ID, "2000.00")

	none, err := f.svc.ConvertForProject(context.Background(), proj.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = f.svc.CreateReferral(context.Background(), p.ID, c.ID, &proj.ID)
	require.NoError(t, err)

	converted, err := f.svc.ConvertForProject(context.Background(), proj.ID)
	require.NoError(t, err)
	require.NotNil(t, converted)
	assert.Equal(t, "200.00", converted.CommissionAmount.String())

	again, err := f.svc.ConvertForProject(context.Background(), proj.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}
