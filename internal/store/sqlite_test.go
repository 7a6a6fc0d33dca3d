// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/inventory"
	"loaner/internal/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *store.SQLite {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.Options{})
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func addLaptop(t *testing.T, db *store.SQLite, class inventory.PerformanceClass) *inventory.Laptop {
	t.Helper()
	laptop, err := inventory.NewLaptop(inventory.LaptopSpec{
		Brand: "Lenovo", Model: "T14", CapacityGB: 512, RAMGB: 16, Class: class,
	}, now)
	require.NoError(t, err)
	require.NoError(t, db.CreateLaptop(context.Background(), laptop))
	return laptop
}

func addStudent(t *testing.T, db *store.SQLite, id string, class inventory.PerformanceClass) *inventory.Student {
	t.Helper()
	student := &inventory.Student{
		ID:            id,
		Name:          "Student " + id,
		Program:       "CS",
		ProgramEnd:    "2027-06-30",
		Email:         id + "@example.com",
		Phone:         "+4712345678",
		RequiredClass: class,
		CreatedAt:     now,
	}
	require.NoError(t, db.CreateStudent(context.Background(), student))
	return student
}

func TestLaptopOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := addLaptop(t, db, inventory.ClassHigh)
	second := addLaptop(t, db, inventory.ClassLow)

	t.Run("GetLaptop", func(t *testing.T) {
		got, err := db.GetLaptop(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, inventory.ClassHigh, got.Class)
		assert.Equal(t, inventory.StateAvailable, got.State)
		assert.True(t, got.CreatedAt.Equal(now))
	})

	t.Run("GetLaptopMissing", func(t *testing.T) {
		_, err := db.GetLaptop(ctx, "nope")
		assert.ErrorIs(t, err, inventory.ErrNotFound)
	})

	t.Run("ListLaptopsInCreationOrder", func(t *testing.T) {
		all, err := db.ListLaptops(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID)
		assert.Equal(t, second.ID, all[1].ID)
	})

	t.Run("SetLaptopStateIsConditional", func(t *testing.T) {
		got, err := db.SetLaptopState(ctx, second.ID, inventory.StateAvailable, inventory.StateLoaned)
		require.NoError(t, err)
		assert.Equal(t, inventory.StateLoaned, got.State)

		_, err = db.SetLaptopState(ctx, second.ID, inventory.StateAvailable, inventory.StateLoaned)
		assert.ErrorIs(t, err, inventory.ErrConflict)

		loaned := inventory.StateLoaned
		list, err := db.ListLaptops(ctx, &loaned)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("UpdateLaptop", func(t *testing.T) {
		first.Brand = "Dell"
		require.NoError(t, db.UpdateLaptop(ctx, first))
		got, err := db.GetLaptop(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dell", got.Brand)
	})

	t.Run("DeleteLaptop", func(t *testing.T) {
		require.NoError(t, db.DeleteLaptop(ctx, second.ID))
		assert.ErrorIs(t, db.DeleteLaptop(ctx, second.ID), inventory.ErrNotFound)
	})
}

func TestStudentOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	addStudent(t, db, "10000001", inventory.ClassHigh)
	addStudent(t, db, "10000002", inventory.ClassLow)

	t.Run("DuplicateIDConflicts", func(t *testing.T) {
		err := db.CreateStudent(ctx, &inventory.Student{
			ID:            "10000001",
			Name:          "x",
			Program:       "x",
			ProgramEnd:    "2027-01-01",
			Email:         "x@example.com",
			Phone:         "1234567",
			RequiredClass: inventory.ClassLow,
			CreatedAt:     now,
		})
		assert.ErrorIs(t, err, inventory.ErrConflict)
	})

	t.Run("ListByClassAndCount", func(t *testing.T) {
		high := inventory.ClassHigh
		students, err := db.ListStudents(ctx, &high)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "10000001", students[0].ID)

		n, err := db.CountStudents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("DeleteStudentRemovesQueueEntries", func(t *testing.T) {
		_, err := db.Enqueue(ctx, "10000002", inventory.ClassLow, now)
		require.NoError(t, err)
		require.NoError(t, db.DeleteStudent(ctx, "10000002"))

		entries, err := db.ListQueue(ctx, inventory.ClassLow)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("EnqueueUnknownStudent", func(t *testing.T) {
		_, err := db.Enqueue(ctx, "99999999", inventory.ClassLow, now)
		assert.ErrorIs(t, err, inventory.ErrNotFound)
	})
}

func TestClaimLaptop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	laptop := addLaptop(t, db, inventory.ClassHigh)
	addStudent(t, db, "20000001", inventory.ClassHigh)
	addStudent(t, db, "20000002", inventory.ClassHigh)

	claim, err := db.ClaimLaptop(ctx, inventory.ClassHigh, "20000001", now)
	require.NoError(t, err)
	assert.Equal(t, laptop.ID, claim.Laptop.ID)
	assert.Equal(t, inventory.StateLoaned, claim.Laptop.State)
	assert.Equal(t, inventory.ReservationActive, claim.Reservation.Status)

	_, err = db.ClaimLaptop(ctx, inventory.ClassHigh, "20000002", now)
	assert.ErrorIs(t, err, inventory.ErrNoLaptopAvailable)

	_, err = db.ClaimLaptop(ctx, inventory.ClassLow, "20000002", now)
	assert.ErrorIs(t, err, inventory.ErrNoLaptopAvailable)

	_, err = db.ClaimSpecificLaptop(ctx, laptop.ID, "20000002", now)
	assert.ErrorIs(t, err, inventory.ErrLaptopOnLoan)

	active, err := db.HasActiveReservation(ctx, laptop.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestConcurrentClaimsForLastLaptop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	addLaptop(t, db, inventory.ClassHigh)
	const contenders = 8
	for i := 0; i < contenders; i++ {
		addStudent(t, db, fmt.Sprintf("3000000%d", i), inventory.ClassHigh)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, misses := 0, 0
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.ClaimLaptop(ctx, inventory.ClassHigh, fmt.Sprintf("3000000%d", i), now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, inventory.ErrNoLaptopAvailable):
				misses++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, misses)

	active, err := db.ListReservations(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCloseReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	laptop := addLaptop(t, db, inventory.ClassLow)
	addStudent(t, db, "40000001", inventory.ClassLow)

	claim, err := db.ClaimSpecificLaptop(ctx, laptop.ID, "40000001", now)
	require.NoError(t, err)

	closed, err := db.CloseReservation(ctx, claim.Reservation.ID, inventory.ReservationCompleted, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationCompleted, closed.Reservation.Status)
	require.NotNil(t, closed.Reservation.ClosedAt)
	assert.Equal(t, inventory.StateAvailable, closed.Laptop.State)

	_, err = db.CloseReservation(ctx, claim.Reservation.ID, inventory.ReservationCancelled, now)
	assert.ErrorIs(t, err, inventory.ErrReservationNotActive)

	stored, err := db.GetReservation(ctx, claim.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationCompleted, stored.Status)

	_, err = db.CloseReservation(ctx, "missing", inventory.ReservationCompleted, now)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	all, err := db.ListReservations(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := db.ListReservations(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteIdleLaptop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	idle := addLaptop(t, db, inventory.ClassHigh)
	loaned := addLaptop(t, db, inventory.ClassHigh)
	addStudent(t, db, "45000001", inventory.ClassHigh)
	_, err := db.ClaimSpecificLaptop(ctx, loaned.ID, "45000001", now)
	require.NoError(t, err)

	require.NoError(t, db.DeleteIdleLaptop(ctx, idle.ID))
	_, err = db.GetLaptop(ctx, idle.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	err = db.DeleteIdleLaptop(ctx, loaned.ID)
	assert.ErrorIs(t, err, inventory.ErrLaptopOnLoan)
	_, err = db.GetLaptop(ctx, loaned.ID)
	assert.NoError(t, err, "loaned laptop must survive a guarded delete")

	err = db.DeleteIdleLaptop(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestGuardedDeleteRacingClaim(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		laptop := addLaptop(t, db, inventory.ClassLow)
		studentID := fmt.Sprintf("%08d", 46000000+i)
		addStudent(t, db, studentID, inventory.ClassLow)

		var claimErr, deleteErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, claimErr = db.ClaimSpecificLaptop(ctx, laptop.ID, studentID, now)
		}()
		go func() {
			defer wg.Done()
			deleteErr = db.DeleteIdleLaptop(ctx, laptop.ID)
		}()
		wg.Wait()

		// Either the claim won and the laptop stays, or the delete won and
		// no reservation points at a missing laptop.
		active, err := db.HasActiveReservation(ctx, laptop.ID)
		require.NoError(t, err)
		if deleteErr == nil {
			assert.False(t, active, "deleted laptop %s still has an active reservation", laptop.ID)
			assert.Error(t, claimErr)
		} else {
			assert.ErrorIs(t, deleteErr, inventory.ErrLaptopOnLoan)
			require.NoError(t, claimErr)
			assert.True(t, active)
		}
	}
}

func TestQueueOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	addStudent(t, db, "50000001", inventory.ClassHigh)
	addStudent(t, db, "50000002", inventory.ClassHigh)

	e1, err := db.Enqueue(ctx, "50000001", inventory.ClassHigh, now)
	require.NoError(t, err)
	_, err = db.Enqueue(ctx, "50000002", inventory.ClassHigh, now)
	require.NoError(t, err)

	entries, err := db.ListQueue(ctx, inventory.ClassHigh)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "50000001", entries[0].StudentID)
	assert.Equal(t, "50000002", entries[1].StudentID)

	queued, err := db.IsQueued(ctx, "50000001", inventory.ClassHigh)
	require.NoError(t, err)
	assert.True(t, queued)

	t.Run("ClaimForQueueEntryWithoutLaptopKeepsEntry", func(t *testing.T) {
		_, err := db.ClaimForQueueEntry(ctx, e1, now)
		assert.ErrorIs(t, err, inventory.ErrNoLaptopAvailable)
		entries, err := db.ListQueue(ctx, inventory.ClassHigh)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("ClaimForQueueEntryRemovesEntry", func(t *testing.T) {
		addLaptop(t, db, inventory.ClassHigh)
		claim, err := db.ClaimForQueueEntry(ctx, e1, now)
		require.NoError(t, err)
		assert.Equal(t, "50000001", claim.Reservation.StudentID)

		entries, err := db.ListQueue(ctx, inventory.ClassHigh)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "50000002", entries[0].StudentID)
	})
}
