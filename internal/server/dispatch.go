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

package server

import (
	"context"
	"fmt"
	"time"

	"loaner/internal/inventory"
	"loaner/internal/protocol"
)

// handlerFunc serves one request type and returns the response payload
type handlerFunc func(ctx context.Context, sess *Session, msg *protocol.Message) (interface{}, error)

// handlers is the dispatch table for every request type except disconnect,
// which the session loop handles itself
func (s *Server) handlers() map[protocol.RequestType]handlerFunc {
	return map[protocol.RequestType]handlerFunc{
		protocol.NewClient: s.handleNewClient,
		protocol.Ping: func(context.Context, *Session, *protocol.Message) (interface{}, error) {
			return protocol.Pong{Time: time.Now().UTC()}, nil
		},

		protocol.GetAllLaptops:          s.listLaptops(nil),
		protocol.GetAvailableLaptops:    s.listLaptops(stateRef(inventory.StateAvailable)),
		protocol.GetLoanedLaptops:       s.listLaptops(stateRef(inventory.StateLoaned)),
		protocol.GetNextAvailableLaptop: s.handleNextAvailableLaptop,
		protocol.GetLaptopByUUID: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.GetLaptop(ctx, id)
		}),
		protocol.CreateLaptop: s.handleCreateLaptop,
		protocol.UpdateLaptop: s.handleUpdateLaptop,
		protocol.UpdateLaptopState: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.ToggleLaptopState(ctx, id)
		}),
		protocol.DeleteLaptop: withID(func(ctx context.Context, id string) (interface{}, error) {
			if err := s.engine.DeleteLaptop(ctx, id); err != nil {
				return nil, err
			}
			return protocol.IDPayload{ID: id}, nil
		}),

		protocol.GetAllStudents:       s.listStudents(nil),
		protocol.GetHighPowerStudents: s.listStudents(classRef(inventory.ClassHigh)),
		protocol.GetLowPowerStudents:  s.listStudents(classRef(inventory.ClassLow)),
		protocol.GetStudentCount: func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
			n, err := s.engine.CountStudents(ctx)
			if err != nil {
				return nil, err
			}
			return protocol.Count{Count: n}, nil
		},
		protocol.GetStudentByID: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.GetStudent(ctx, id)
		}),
		protocol.CreateStudent: s.handleCreateStudent,
		protocol.UpdateStudent: s.handleUpdateStudent,
		protocol.DeleteStudent: withID(func(ctx context.Context, id string) (interface{}, error) {
			if err := s.engine.DeleteStudent(ctx, id); err != nil {
				return nil, err
			}
			return protocol.IDPayload{ID: id}, nil
		}),

		protocol.CreateReservation: s.handleCreateReservation,
		protocol.GetActiveReservations: func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
			return s.engine.ListReservations(ctx, true)
		},
		protocol.GetAllReservations: func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
			return s.engine.ListReservations(ctx, false)
		},
		protocol.GetReservationByID: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.GetReservation(ctx, id)
		}),
		protocol.CompleteReservation: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.CompleteReservation(ctx, id)
		}),
		protocol.CancelReservation: withID(func(ctx context.Context, id string) (interface{}, error) {
			return s.engine.CancelReservation(ctx, id)
		}),

		protocol.GetHighPerformanceQueue: s.queue(inventory.ClassHigh),
		protocol.GetLowPerformanceQueue:  s.queue(inventory.ClassLow),
		protocol.AddToHighQueue:          s.addToQueue(inventory.ClassHigh),
		protocol.AddToLowQueue:           s.addToQueue(inventory.ClassLow),
		protocol.ProcessQueues: func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
			return s.engine.DrainQueues(ctx)
		},
	}
}

// handle turns one request into one response. Failures become error
// responses; nothing here ends the session.
func (s *Server) handle(ctx context.Context, sess *Session, msg *protocol.Message) *protocol.Message {
	start := time.Now()
	reqType := protocol.RequestType(msg.Type)
	log := sess.logger.With().Str("request_type", msg.Type).Str("request_id", msg.ID).Logger()

	if reqType.Mutating() {
		if cached, ok := s.nonces.CheckNonce(reqType, msg.ID); ok {
			log.Debug().Msg("Replaying cached response")
			s.metrics.replayed()
			return cached
		}
	}

	resp := s.invoke(ctx, sess, msg)
	elapsed := time.Since(start)
	s.metrics.observeRequest(msg.Type, resp, elapsed)

	if resp.Error != nil {
		if resp.Error.Code == protocol.CodeInternal {
			log.Error().Str("error", resp.Error.Message).Dur("duration", elapsed).Msg("Request failed")
		} else {
			log.Debug().Str("code", string(resp.Error.Code)).Str("error", resp.Error.Message).Msg("Request rejected")
		}
	} else {
		log.Debug().Dur("duration", elapsed).Msg("Request handled")
	}

	if reqType.Mutating() && (resp.Error == nil || resp.Error.Code != protocol.CodeInternal) {
		s.nonces.StoreResponse(reqType, msg.ID, resp)
	}
	return resp
}

func (s *Server) invoke(ctx context.Context, sess *Session, msg *protocol.Message) (resp *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			sess.logger.Error().Interface("panic", r).Str("request_type", msg.Type).Msg("Handler panicked")
			resp = protocol.NewErrorResponse(msg.ID, fmt.Errorf("internal error handling %s", msg.Type))
		}
	}()

	handler, ok := s.table[protocol.RequestType(msg.Type)]
	if !ok {
		return protocol.NewErrorResponse(msg.ID, &protocol.Error{
			Code:    protocol.CodeBadRequest,
			Message: fmt.Sprintf("unknown request type %q", msg.Type),
		})
	}

	payload, err := handler(ctx, sess, msg)
	if err != nil {
		return protocol.NewErrorResponse(msg.ID, err)
	}
	out, err := protocol.NewResponse(msg.ID, payload)
	if err != nil {
		return protocol.NewErrorResponse(msg.ID, err)
	}
	return out
}

// handleNewClient subscribes the session to broadcasts and pushes it one
// snapshot of the current state. Registration happens first so no change
// committed after the snapshot is missed.
func (s *Server) handleNewClient(ctx context.Context, sess *Session, _ *protocol.Message) (interface{}, error) {
	s.registry.Register(sess)

	snapshot, err := s.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	event, err := protocol.NewEvent(protocol.EventSnapshot, snapshot)
	if err != nil {
		return nil, err
	}
	if !sess.Push(event) {
		return nil, fmt.Errorf("failed to push snapshot to session %s", sess.ID())
	}
	return protocol.Welcome{
		SessionID: sess.ID(),
		Protocol:  protocol.PROTOCOL_VERSION,
		Server:    s.name,
		Time:      time.Now().UTC(),
	}, nil
}

func (s *Server) handleNextAvailableLaptop(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var req protocol.ClassPayload
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}
	class, err := inventory.ParsePerformanceClass(string(req.Class))
	if err != nil {
		return nil, err
	}
	return s.engine.NextAvailableLaptop(ctx, class)
}

func (s *Server) handleCreateLaptop(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var spec inventory.LaptopSpec
	if err := msg.Decode(&spec); err != nil {
		return nil, err
	}
	if err := normalizeClass(&spec.Class); err != nil {
		return nil, err
	}
	return s.engine.CreateLaptop(ctx, spec)
}

func (s *Server) handleUpdateLaptop(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var req protocol.UpdateLaptopPayload
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}
	if err := normalizeClass(&req.Class); err != nil {
		return nil, err
	}
	return s.engine.UpdateLaptop(ctx, req.ID, req.LaptopSpec)
}

func (s *Server) handleCreateStudent(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var student inventory.Student
	if err := msg.Decode(&student); err != nil {
		return nil, err
	}
	if err := normalizeClass(&student.RequiredClass); err != nil {
		return nil, err
	}
	return s.engine.RegisterStudent(ctx, &student)
}

func (s *Server) handleUpdateStudent(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var student inventory.Student
	if err := msg.Decode(&student); err != nil {
		return nil, err
	}
	if err := normalizeClass(&student.RequiredClass); err != nil {
		return nil, err
	}
	return s.engine.UpdateStudent(ctx, &student)
}

func (s *Server) handleCreateReservation(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
	var req protocol.CreateReservationPayload
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}
	return s.engine.CreateReservation(ctx, req.StudentID, req.LaptopID)
}

func (s *Server) listLaptops(state *inventory.LaptopState) handlerFunc {
	return func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
		return s.engine.ListLaptops(ctx, state)
	}
}

func (s *Server) listStudents(class *inventory.PerformanceClass) handlerFunc {
	return func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
		return s.engine.ListStudents(ctx, class)
	}
}

func (s *Server) queue(class inventory.PerformanceClass) handlerFunc {
	return func(ctx context.Context, _ *Session, _ *protocol.Message) (interface{}, error) {
		return s.engine.Queue(ctx, class)
	}
}

func (s *Server) addToQueue(class inventory.PerformanceClass) handlerFunc {
	return withID(func(ctx context.Context, id string) (interface{}, error) {
		return s.engine.AddToQueue(ctx, id, class)
	})
}

// withID decodes an IDPayload before calling fn
func withID(fn func(ctx context.Context, id string) (interface{}, error)) handlerFunc {
	return func(ctx context.Context, _ *Session, msg *protocol.Message) (interface{}, error) {
		var req protocol.IDPayload
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, &inventory.ValidationError{Field: "id", Reason: "must not be empty"}
		}
		return fn(ctx, req.ID)
	}
}

// normalizeClass rewrites any accepted class spelling to its canonical
// value. An empty class is left for the engine to judge.
func normalizeClass(class *inventory.PerformanceClass) error {
	if *class == "" {
		return nil
	}
	parsed, err := inventory.ParsePerformanceClass(string(*class))
	if err != nil {
		return err
	}
	*class = parsed
	return nil
}

func stateRef(state inventory.LaptopState) *inventory.LaptopState {
	return &state
}

func classRef(class inventory.PerformanceClass) *inventory.PerformanceClass {
	return &class
}
