package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

func newPlanner(t *testing.T) (*services.ReservationPlanner, *services.TableRegistry, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	hub := ws.NewHub()
	registry := services.NewTableRegistry(db, hub)
	planner := services.NewReservationPlanner(db, hub, registry)
	planner.Lookahead = 30 * time.Minute
	planner.Grace = 30 * time.Minute
	return planner, registry, db
}

func seedTable(t *testing.T, registry *services.TableRegistry, number string, capacity int) models.Table {
	t.Helper()
	table := models.Table{Number: number, Capacity: capacity}
	require.NoError(t, registry.CreateTable(&table))
	return table
}

func TestCreateReservationPicksSmallestFit(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	seedTable(t, registry, "T1", 2)
	seedTable(t, registry, "T2", 4)
	seedTable(t, registry, "T3", 8)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Avery",
		PartySize:    3,
		Date:         time.Now().Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, 4, res.Tables[0].Capacity)
	assert.Equal(t, models.ReservationPending, res.Status)
	assert.Contains(t, res.Code, "RSV-")
}

func TestFarFutureBookingLeavesTableVacant(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Blair",
		PartySize:    2,
		Date:         time.Now().Add(3 * time.Hour),
	})
	require.NoError(t, err)

	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableVacant, got.Status, "a booking outside the lookahead must not block walk-ins")
	require.NotNil(t, got.ReservationID)
	assert.Equal(t, res.ID, *got.ReservationID)
	assert.NotNil(t, got.UpcomingReservationTime)
	assert.NotNil(t, got.ReservedUntil)
}

func TestImminentBookingReservesTable(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)

	_, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Casey",
		PartySize:    2,
		Date:         time.Now().Add(10 * time.Minute),
	})
	require.NoError(t, err)

	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, got.Status)
}

func TestCreateReservationCombinesTables(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	seedTable(t, registry, "T1", 2)
	seedTable(t, registry, "T2", 2)
	seedTable(t, registry, "T3", 2)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Devon",
		PartySize:    5,
		Date:         time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, res.Tables, 3, "2+2 seats only 4; a third table is needed for 5")
}

func TestCreateReservationImpossiblePartyRollsBack(t *testing.T) {
	planner, registry, db := newPlanner(t)

	seedTable(t, registry, "T1", 2)

	_, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Emerson",
		PartySize:    10,
		Date:         time.Now().Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, utils.ErrConflict)

	var reservations, history int64
	db.Model(&models.Reservation{}).Count(&reservations)
	db.Model(&models.ReservationStatusLog{}).Count(&history)
	assert.EqualValues(t, 0, reservations, "a failed booking must not survive")
	assert.EqualValues(t, 0, history)
}

func TestOverlappingBookingRejected(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)
	start := time.Now().Add(4 * time.Hour)

	_, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "First",
		PartySize:    2,
		Date:         start,
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)

	_, err = planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Second",
		PartySize:    2,
		Date:         start.Add(30 * time.Minute),
		TableIDs:     []uint{table.ID},
	})
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestBackToBackBookingsShareTable(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)
	start := time.Now().Add(4 * time.Hour)

	_, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "First",
		PartySize:    2,
		Date:         start,
		Duration:     90,
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)

	// Starts exactly when the first one ends; [s,e) intervals do not overlap.
	second, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Second",
		PartySize:    2,
		Date:         start.Add(90 * time.Minute),
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)
	require.Len(t, second.Tables, 1)
	assert.Equal(t, table.ID, second.Tables[0].ID)

	// The earlier booking keeps the stamp.
	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UpcomingReservationTime)
	assert.WithinDuration(t, start, *got.UpcomingReservationTime, time.Second)
}

func TestReleaseHandsStampToNextBooking(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)
	start := time.Now().Add(time.Hour)

	first, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "First",
		PartySize:    2,
		Date:         start,
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)

	// Claims the same table without taking the stamp; the earlier booking
	// owns it.
	second, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Second",
		PartySize:    2,
		Date:         start.Add(4 * time.Hour),
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)

	_, err = planner.Cancel(first.ID, "host", "customer called")
	require.NoError(t, err)

	// The stamp moves to the later booking so the promotion sweep can still
	// flip the table to RESERVED when its slot comes up.
	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReservationID)
	assert.Equal(t, second.ID, *got.ReservationID)
	require.NotNil(t, got.UpcomingReservationTime)
	assert.WithinDuration(t, second.ReservationDate, *got.UpcomingReservationTime, time.Second)
	require.NotNil(t, got.ReservedUntil)
	assert.WithinDuration(t, second.ExpectedEndTime, *got.ReservedUntil, time.Second)
}

func TestFindAvailableTablesFilters(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	seedTable(t, registry, "SMALL", 2)
	big := seedTable(t, registry, "BIG", 6)
	broken := seedTable(t, registry, "BROKEN", 8)
	_, err := registry.UpdateStatus(broken.ID, models.TableMaintenance, services.StatusChange{})
	require.NoError(t, err)

	available, err := planner.FindAvailableTables(time.Now().Add(time.Hour), 4, 90*time.Minute)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, big.ID, available[0].ID)
}

func TestFindAvailableTablesExcludesOverlap(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)
	start := time.Now().Add(4 * time.Hour)

	_, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Holder",
		PartySize:    2,
		Date:         start,
		TableIDs:     []uint{table.ID},
	})
	require.NoError(t, err)

	overlapping, err := planner.FindAvailableTables(start.Add(time.Hour), 2, 90*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	clear, err := planner.FindAvailableTables(start.Add(3*time.Hour), 2, 90*time.Minute)
	require.NoError(t, err)
	assert.Len(t, clear, 1)
}

func TestLifecycleCheckInCompleteFreesTables(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Frankie",
		PartySize:    2,
		Date:         time.Now().Add(15 * time.Minute),
	})
	require.NoError(t, err)

	res, err = planner.Confirm(res.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)

	res, err = planner.CheckIn(res.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCheckedIn, res.Status)

	seated, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, seated.Status)

	res, err = planner.Complete(res.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, res.Status)

	freed, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableVacant, freed.Status)
	assert.Nil(t, freed.ReservationID)
	assert.Nil(t, freed.UpcomingReservationTime)
}

func TestCancelReleasesFarFutureStamp(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Gale",
		PartySize:    2,
		Date:         time.Now().Add(3 * time.Hour),
	})
	require.NoError(t, err)

	_, err = planner.Cancel(res.ID, "host", "customer called")
	require.NoError(t, err)

	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableVacant, got.Status)
	assert.Nil(t, got.ReservationID)
	assert.Nil(t, got.ReservedUntil)
}

func TestIllegalReservationTransition(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	seedTable(t, registry, "T1", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Harper",
		PartySize:    2,
		Date:         time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)

	// PENDING cannot jump straight to COMPLETED.
	_, err = planner.Complete(res.ID, "host")
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	// Terminal states stay terminal.
	_, err = planner.Cancel(res.ID, "host", "")
	require.NoError(t, err)
	_, err = planner.Confirm(res.ID, "host")
	assert.ErrorIs(t, err, utils.ErrInvalidState)
}

func TestUpdateReservationRestampsOnNewTime(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	table := seedTable(t, registry, "T1", 4)
	start := time.Now().Add(3 * time.Hour)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Indy",
		PartySize:    2,
		Date:         start,
	})
	require.NoError(t, err)

	newStart := start.Add(2 * time.Hour)
	res, err = planner.UpdateReservation(res.ID, services.ReservationUpdate{Date: &newStart}, "host")
	require.NoError(t, err)
	assert.WithinDuration(t, newStart.Add(90*time.Minute), res.ExpectedEndTime, time.Second)

	got, err := registry.Get(table.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UpcomingReservationTime)
	assert.WithinDuration(t, newStart, *got.UpcomingReservationTime, time.Second)
}

func TestUpdateReservationSwapsTables(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	first := seedTable(t, registry, "T1", 4)
	second := seedTable(t, registry, "T2", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Jules",
		PartySize:    2,
		Date:         time.Now().Add(3 * time.Hour),
		TableIDs:     []uint{first.ID},
	})
	require.NoError(t, err)

	res, err = planner.UpdateReservation(res.ID, services.ReservationUpdate{
		TableIDs: &[]uint{second.ID},
	}, "host")
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, second.ID, res.Tables[0].ID)

	released, err := registry.Get(first.ID)
	require.NoError(t, err)
	assert.Nil(t, released.ReservationID)

	claimed, err := registry.Get(second.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.ReservationID)
	assert.Equal(t, res.ID, *claimed.ReservationID)
}

func TestReservationHistoryTrail(t *testing.T) {
	planner, registry, _ := newPlanner(t)

	seedTable(t, registry, "T1", 4)

	res, err := planner.CreateReservation(services.ReservationRequest{
		CustomerName: "Kai",
		PartySize:    2,
		Date:         time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = planner.Confirm(res.ID, "host")
	require.NoError(t, err)
	_, err = planner.CheckIn(res.ID, "host")
	require.NoError(t, err)

	trail, err := planner.History(res.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, models.ReservationPending, trail[0].ToStatus)
	assert.Equal(t, models.ReservationConfirmed, trail[1].ToStatus)
	assert.Equal(t, models.ReservationCheckedIn, trail[2].ToStatus)
}
