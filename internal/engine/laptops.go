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

package engine

import (
	"context"
	"fmt"

	"loaner/internal/inventory"
	"loaner/internal/protocol"
)

// CreateLaptop validates spec and stores a new AVAILABLE laptop
func (e *Engine) CreateLaptop(ctx context.Context, spec inventory.LaptopSpec) (*inventory.Laptop, error) {
	laptop, err := inventory.NewLaptop(spec, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateLaptop(ctx, laptop); err != nil {
		return nil, e.fail("create_laptop", err)
	}

	e.logger.Info().Str("laptop_id", laptop.ID).Str("class", string(laptop.Class)).Msg("Laptop created")
	e.notify(protocol.EventLaptopCreated, laptop)
	return laptop, nil
}

func (e *Engine) GetLaptop(ctx context.Context, id string) (*inventory.Laptop, error) {
	if err := inventory.ValidateLaptopID(id); err != nil {
		return nil, err
	}
	laptop, err := e.store.GetLaptop(ctx, id)
	if err != nil {
		return nil, e.fail("get_laptop", err)
	}
	return laptop, nil
}

// ListLaptops returns every laptop, or only those in state when it is not nil
func (e *Engine) ListLaptops(ctx context.Context, state *inventory.LaptopState) ([]*inventory.Laptop, error) {
	laptops, err := e.store.ListLaptops(ctx, state)
	if err != nil {
		return nil, e.fail("list_laptops", err)
	}
	return laptops, nil
}

// NextAvailableLaptop returns the laptop a claim for class would currently
// pick. It is informational only: nothing is reserved.
func (e *Engine) NextAvailableLaptop(ctx context.Context, class inventory.PerformanceClass) (*inventory.Laptop, error) {
	if !class.Valid() {
		return nil, &inventory.ValidationError{Field: "class", Reason: fmt.Sprintf("unknown performance class %q", class)}
	}
	laptop, err := e.store.PeekAvailableLaptop(ctx, class)
	if err != nil {
		return nil, e.fail("get_next_available_laptop", err)
	}
	return laptop, nil
}

// UpdateLaptop replaces brand, model, capacity and memory. Class is immutable.
func (e *Engine) UpdateLaptop(ctx context.Context, id string, spec inventory.LaptopSpec) (*inventory.Laptop, error) {
	laptop, err := e.GetLaptop(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := laptop.ApplyUpdate(spec); err != nil {
		return nil, err
	}
	if err := e.store.UpdateLaptop(ctx, laptop); err != nil {
		return nil, e.fail("update_laptop", err)
	}

	e.notify(protocol.EventLaptopUpdated, laptop)
	return laptop, nil
}

// ToggleLaptopState flips AVAILABLE and LOANED by hand. A laptop held by an
// ACTIVE reservation cannot be released this way; the reservation has to be
// completed or cancelled instead.
func (e *Engine) ToggleLaptopState(ctx context.Context, id string) (*inventory.Laptop, error) {
	laptop, err := e.GetLaptop(ctx, id)
	if err != nil {
		return nil, err
	}

	if laptop.State == inventory.StateLoaned {
		held, err := e.store.HasActiveReservation(ctx, id)
		if err != nil {
			return nil, e.fail("update_laptop_state", err)
		}
		if held {
			return nil, fmt.Errorf("%w: laptop %s has an active reservation", inventory.ErrLaptopOnLoan, id)
		}
	}

	updated, err := e.store.SetLaptopState(ctx, id, laptop.State, laptop.State.Toggle())
	if err != nil {
		return nil, e.fail("update_laptop_state", err)
	}

	e.logger.Info().Str("laptop_id", id).Str("state", string(updated.State)).Msg("Laptop state changed")
	e.notify(protocol.EventLaptopStateChanged, updated)
	return updated, nil
}

// DeleteLaptop removes a laptop. Unless the policy guards it, a laptop with
// an ACTIVE reservation is removed too and the reservation is left dangling.
// The guarded check and the delete are one store operation, so a claim
// cannot slip in between them.
func (e *Engine) DeleteLaptop(ctx context.Context, id string) error {
	if err := inventory.ValidateLaptopID(id); err != nil {
		return err
	}

	var err error
	if e.policy.GuardLaptopDelete {
		err = e.store.DeleteIdleLaptop(ctx, id)
	} else {
		err = e.store.DeleteLaptop(ctx, id)
	}
	if err != nil {
		return e.fail("delete_laptop", err)
	}

	e.logger.Info().Str("laptop_id", id).Msg("Laptop deleted")
	e.notify(protocol.EventLaptopDeleted, protocol.IDPayload{ID: id})
	return nil
}
