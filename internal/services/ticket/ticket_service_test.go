package ticket

import (
	"context"
	"errors"
	"testing"

	"github.com/softwarepar/backend/internal/database/dbtest"
	"github.com/softwarepar/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newActor(t *testing.T, db *gorm.DB, email string, role models.Role) models.Actor {
	u := models.User{Email: email, Password: "hash", FullName: email, Role: role, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u.Actor()
}

func TestCreateTicketDefaults(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTicketService(db, zap.NewNop())
	client := newActor(t, db, "c1@x.com", models.RoleClient)

	ticket, err := svc.CreateTicket(context.Background(), client, CreateTicketInput{Title: "Bug", Description: "Broken button"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.Equal(t, models.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, client.UserID, ticket.UserID)

	_, err = svc.CreateTicket(context.Background(), client, CreateTicketInput{Title: "x", Description: "y", Priority: "critical"})
	assert.True(t, errors.Is(err, ErrInvalidPriority))

	_, err = svc.CreateTicket(context.Background(), client, CreateTicketInput{Title: " ", Description: "y"})
	assert.True(t, errors.Is(err, ErrTitleRequired))
}

func TestCreateTicketForForeignProject(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTicketService(db, zap.NewNop())
	owner := newActor(t, db, "c1@x.com", models.RoleClient)
	other := newActor(t, db, "c2@x.com", models.RoleClient)
	project := models.Project{Name: "p", Price: models.ZeroMoney(), ClientID: owner.UserID}
	require.NoError(t, db.Create(&project).Error)

	_, err := svc.CreateTicket(context.Background(), other, CreateTicketInput{Title: "t", Description: "d", ProjectID: &project.ID})
	assert.True(t, errors.Is(err, ErrProjectNotFound))

	ticket, err := svc.CreateTicket(context.Background(), owner, CreateTicketInput{Title: "t", Description: "d", ProjectID: &project.ID})
	require.NoError(t, err)
	require.NotNil(t, ticket.ProjectID)
}

func TestListTicketsScope(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTicketService(db, zap.NewNop())
	c1 := newActor(t, db, "c1@x.com", models.RoleClient)
	c2 := newActor(t, db, "c2@x.com", models.RoleClient)
	admin := newActor(t, db, "admin@x.com", models.RoleAdmin)

	for _, a := range []models.Actor{c1, c1, c2} {
		_, err := svc.CreateTicket(context.Background(), a, CreateTicketInput{Title: "t", Description: "d"})
		require.NoError(t, err)
	}

	mine, err := svc.ListTickets(context.Background(), c1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.ListTickets(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateTicketPermissions(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTicketService(db, zap.NewNop())
	owner := newActor(t, db, "c1@x.com", models.RoleClient)
	other := newActor(t, db, "c2@x.com", models.RoleClient)
	admin := newActor(t, db, "admin@x.com", models.RoleAdmin)

	ticket, err := svc.CreateTicket(context.Background(), owner, CreateTicketInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	resolved := models.TicketStatusResolved
	_, err = svc.UpdateTicket(context.Background(), other, ticket.ID, UpdateTicketInput{Status: &resolved})
	assert.True(t, errors.Is(err, ErrTicketNotFound))

	updated, err := svc.UpdateTicket(context.Background(), admin, ticket.ID, UpdateTicketInput{Status: &resolved})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusResolved, updated.Status)

	urgent := models.TicketPriorityUrgent
	updated, err = svc.UpdateTicket(context.Background(), owner, ticket.ID, UpdateTicketInput{Priority: &urgent})
	require.NoError(t, err)
	assert.Equal(t, models.TicketPriorityUrgent, updated.Priority)

	bogus := models.TicketStatus("done")
	_, err = svc.UpdateTicket(context.Background(), owner, ticket.ID, UpdateTicketInput{Status: &bogus})
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}
