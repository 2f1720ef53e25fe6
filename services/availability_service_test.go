package services

import (
	"testing"
	"time"

	"stayhub-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAvailabilityService(t *testing.T) (*AvailabilityService, *BookingService, *CalendarService) {
	t.Helper()
	db := openTestDB(t)
	cal := NewCalendarService(db)
	return NewAvailabilityService(db, cal), NewBookingService(db, cal, nil), cal
}

func TestValidateRejectsBadInput(t *testing.T) {
	svc, _, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	day := date(nextYear(), time.June, 1)

	_, err := svc.ValidateChange(room.ID, []time.Time{day}, "demolish")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.ValidateChange(room.ID, nil, OpBlock)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.ValidateChange(9999, []time.Time{day}, OpBlock)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestValidatePastDatesImmutableForEveryOp(t *testing.T) {
	svc, _, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	past := Day(time.Now().UTC()).AddDate(0, 0, -7)

	for _, op := range []string{OpBook, OpBlock, OpUnblock, OpMaintenance} {
		result, err := svc.ValidateChange(room.ID, []time.Time{past}, op)
		require.NoError(t, err, "op %s", op)
		assert.False(t, result.Valid, "op %s must conflict on past dates", op)
		require.Len(t, result.Conflicts, 1)
		assert.False(t, result.Conflicts[0].CanOverride)
	}
}

func TestValidateBookedDateConflicts(t *testing.T) {
	svc, bookings, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()

	_, err := bookings.CreateBooking(bookingInput(room.ID, date(year, time.June, 1), date(year, time.June, 3)))
	require.NoError(t, err)
	bookedDay := date(year, time.June, 2)

	for _, op := range []string{OpBook, OpBlock, OpMaintenance} {
		result, err := svc.ValidateChange(room.ID, []time.Time{bookedDay}, op)
		require.NoError(t, err)
		assert.False(t, result.Valid, "op %s must conflict on a booked date", op)
	}

	// Unblock passes validation on booked dates; the apply path still
	// refuses to free them.
	result, err := svc.ValidateChange(room.ID, []time.Time{bookedDay}, OpUnblock)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateInactiveBookingIsWarning(t *testing.T) {
	svc, bookings, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()

	booking, err := bookings.CreateBooking(bookingInput(room.ID, date(year, time.June, 1), date(year, time.June, 3)))
	require.NoError(t, err)

	// Force the booking inactive without releasing its dates, simulating a
	// stale claim left by an interrupted cancellation.
	require.NoError(t, svc.DB.Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("status", models.BookingStatusExpired).Error)

	result, err := svc.ValidateChange(room.ID, []time.Time{date(year, time.June, 1)}, OpBlock)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.True(t, result.Warnings[0].CanOverride)
}

func TestValidateIdempotentOpsWarn(t *testing.T) {
	svc, _, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()
	day := date(year, time.June, 10)

	_, err := svc.UpdateAvailability(room.ID, []time.Time{day}, OpBlock, "", "admin")
	require.NoError(t, err)

	result, err := svc.ValidateChange(room.ID, []time.Time{day}, OpBlock)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)

	result, err = svc.ValidateChange(room.ID, []time.Time{date(year, time.June, 11)}, OpUnblock)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
}

func TestUpdateAvailabilityBlockAndUnblock(t *testing.T) {
	svc, _, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()
	days := []time.Time{date(year, time.June, 10), date(year, time.June, 11)}

	result, err := svc.UpdateAvailability(room.ID, days, OpBlock, "renovation", "manager@stayhub.local")
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := readYearMap(t, cal, room.ID, year)
	require.Len(t, stored, 2)
	entry := stored["06-10"]
	assert.Equal(t, models.DateStatusBlocked, entry.Status)
	assert.Equal(t, "renovation", entry.Reason)
	assert.Equal(t, "manager@stayhub.local", entry.BlockedBy)
	require.NotNil(t, entry.BlockedAt)

	result, err = svc.UpdateAvailability(room.ID, days, OpUnblock, "", "manager@stayhub.local")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, readYearMap(t, cal, room.ID, year))
}

func TestUpdateAvailabilityMaintenance(t *testing.T) {
	svc, _, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()
	day := date(year, time.September, 5)

	result, err := svc.UpdateAvailability(room.ID, []time.Time{day}, OpMaintenance, "aircon service", "admin")
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := readYearMap(t, cal, room.ID, year)
	assert.Equal(t, models.DateStatusMaintenance, stored["09-05"].Status)
}

func TestUpdateAvailabilityRejectsBookOp(t *testing.T) {
	svc, _, _ := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)

	_, err := svc.UpdateAvailability(room.ID, []time.Time{date(nextYear(), time.June, 1)}, OpBook, "", "admin")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestUpdateAvailabilityConflictWritesNothing(t *testing.T) {
	svc, bookings, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()

	booking, err := bookings.CreateBooking(bookingInput(room.ID, date(year, time.June, 2), date(year, time.June, 3)))
	require.NoError(t, err)

	// One booked date poisons the batch; the free date must stay free too.
	result, err := svc.UpdateAvailability(room.ID,
		[]time.Time{date(year, time.June, 1), date(year, time.June, 2)},
		OpBlock, "renovation", "admin")
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, date(year, time.June, 2).Format("2006-01-02"), result.Conflicts[0].Date)

	stored := readYearMap(t, cal, room.ID, year)
	require.Len(t, stored, 1)
	assert.Equal(t, booking.ReferenceCode, stored["06-02"].BookingRef)
}

func TestUpdateAvailabilityUnblockSkipsBookedDays(t *testing.T) {
	svc, bookings, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()

	booking, err := bookings.CreateBooking(bookingInput(room.ID, date(year, time.June, 2), date(year, time.June, 3)))
	require.NoError(t, err)
	_, err = svc.UpdateAvailability(room.ID, []time.Time{date(year, time.June, 1)}, OpBlock, "", "admin")
	require.NoError(t, err)

	result, err := svc.UpdateAvailability(room.ID,
		[]time.Time{date(year, time.June, 1), date(year, time.June, 2)},
		OpUnblock, "", "admin")
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := readYearMap(t, cal, room.ID, year)
	require.Len(t, stored, 1)
	assert.Equal(t, booking.ReferenceCode, stored["06-02"].BookingRef)
}

func TestUpdateAvailabilityRejectsBookingClaimedAfterDryRun(t *testing.T) {
	svc, bookings, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()
	day := date(year, time.June, 2)

	for _, op := range []string{OpBlock, OpMaintenance} {
		dry, err := svc.ValidateChange(room.ID, []time.Time{day}, op)
		require.NoError(t, err)
		require.True(t, dry.Valid, "dry run must pass while the day is free")
	}

	// A guest books the day between the dry run and the apply.
	booking, err := bookings.CreateBooking(bookingInput(room.ID, day, date(year, time.June, 3)))
	require.NoError(t, err)

	for _, op := range []string{OpBlock, OpMaintenance} {
		result, err := svc.UpdateAvailability(room.ID, []time.Time{day}, op, "renovation", "admin")
		require.NoError(t, err)
		assert.False(t, result.Success, "op %s must re-validate inside its transaction", op)
		require.Len(t, result.Conflicts, 1)
	}

	// The booked entry is untouched and the booking still stands.
	stored := readYearMap(t, cal, room.ID, year)
	assert.Equal(t, models.DateStatusBooked, stored["06-02"].Status)
	assert.Equal(t, booking.ReferenceCode, stored["06-02"].BookingRef)

	loaded, err := bookings.GetByReference(booking.ReferenceCode)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, loaded.Status)
}

func TestUpdateAvailabilityCrossYearAtomic(t *testing.T) {
	svc, _, cal := newAvailabilityService(t)
	room := seedRoom(t, svc.DB, "101", 1500)
	year := nextYear()

	days := []time.Time{date(year, time.December, 31), date(year+1, time.January, 1)}
	result, err := svc.UpdateAvailability(room.ID, days, OpBlock, "new year closure", "admin")
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, models.DateStatusBlocked, readYearMap(t, cal, room.ID, year)["12-31"].Status)
	assert.Equal(t, models.DateStatusBlocked, readYearMap(t, cal, room.ID, year+1)["01-01"].Status)

	result, err = svc.UpdateAvailability(room.ID, days, OpUnblock, "", "admin")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, readYearMap(t, cal, room.ID, year))
	assert.Empty(t, readYearMap(t, cal, room.ID, year+1))
}
