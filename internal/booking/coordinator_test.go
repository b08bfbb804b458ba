package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
)

func completeDraft() Draft {
	svc := serviceA
	return Draft{
		ResourceID:  "r1",
		BookingType: model.BookingWorkshop,
		Date:        day(2025, 3, 1),
		Time:        "14:00",
		Service:     &svc,
		Staff:       &model.Staff{ID: "p1", Name: "Grace", Available: true},
	}
}

func TestBuildRequestDerivesFields(t *testing.T) {
	req, err := BuildRequest(completeDraft(), Booker{Name: "Ada", Email: "ada@example.org"})
	require.NoError(t, err)

	assert.Equal(t, at(2025, 3, 1, 14, 0), req.StartTime)
	assert.Equal(t, at(2025, 3, 1, 15, 0), req.EndTime)
	assert.Equal(t, "Kiln firing", req.Title)
	assert.Equal(t, "Kiln firing with Grace", req.Description)
	assert.Equal(t, 1, req.Capacity)
	assert.Equal(t, "ada@example.org", req.UserEmail)
	assert.Equal(t, "2500", req.Metadata[model.MetaPriceCents])
	assert.Equal(t, "60", req.Metadata[model.MetaDurationMinutes])
	assert.Equal(t, "workshop", req.Metadata[model.MetaBookingType])
	assert.Equal(t, "p1", req.Metadata[model.MetaStaffID])
}

func TestBuildRequestRejectsIncomplete(t *testing.T) {
	d := completeDraft()
	d.Service = nil
	_, err := BuildRequest(d, Booker{})
	assert.ErrorIs(t, err, ErrDraftIncomplete)
}

func TestCoordinatorSubmitPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &recordingPublisher{}
	c := NewCoordinator(store, pub, nil)

	res, err := c.Submit(context.Background(), completeDraft(), Booker{Email: "ada@example.org"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), res.TotalPriceCents)
	assert.Equal(t, "key-1", store.Calls()[0].key)

	require.Len(t, pub.events, 1)
	assert.Equal(t, queue.ReservationCreated, pub.events[0].Kind)
	assert.Equal(t, "r1", pub.events[0].ResourceID)
}

func TestCoordinatorIgnoresPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCoordinator(&fakeStore{}, pub, nil)
	_, err := c.Submit(context.Background(), completeDraft(), Booker{}, "k")
	assert.NoError(t, err)
}

func TestCoordinatorWrapsStoreError(t *testing.T) {
	store := &fakeStore{err: ErrSlotUnavailable}
	pub := &recordingPublisher{}
	c := NewCoordinator(store, pub, nil)

	_, err := c.Submit(context.Background(), completeDraft(), Booker{}, "k")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Len(t, store.Calls(), 1, "no retry")
	assert.Empty(t, pub.events)
}
