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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/inventory"
	"loaner/internal/protocol"
	"loaner/internal/store"
)

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	return startServerWith(t, nil, opts...)
}

// startServerWith lets a test adjust the config before the server is built
func startServerWith(t *testing.T, configure func(*Config), opts ...Option) *Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "server.db"), store.Options{})
	require.NoError(t, err)

	config := NewDefaultConfig()
	config.Server.Address = "127.0.0.1:0"
	config.Server.Workers = 4
	if configure != nil {
		configure(config)
	}

	srv := New(config, db, opts...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		db.Close()
	})
	return srv
}

type testConn struct {
	t    *testing.T
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
	seq  int
}

// dial connects and consumes the welcome push
func dial(t *testing.T, srv *Server) *testConn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &testConn{t: t, conn: conn, enc: protocol.NewEncoder(conn), dec: protocol.NewDecoder(conn, 0)}
	welcome := c.next()
	require.Equal(t, string(protocol.EventWelcome), welcome.Type)
	return c
}

func (c *testConn) next() *protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := c.dec.Decode()
	require.NoError(c.t, err)
	return msg
}

func (c *testConn) send(reqType protocol.RequestType, id string, payload interface{}) {
	c.t.Helper()
	msg, err := protocol.NewRequest(reqType, id, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.enc.Encode(msg))
}

// call sends one request and returns its response together with the pushes
// that arrived before it
func (c *testConn) call(reqType protocol.RequestType, payload interface{}) (*protocol.Message, []*protocol.Message) {
	c.t.Helper()
	c.seq++
	return c.callWithID(reqType, fmt.Sprintf("req-%d", c.seq), payload)
}

func (c *testConn) callWithID(reqType protocol.RequestType, id string, payload interface{}) (*protocol.Message, []*protocol.Message) {
	c.t.Helper()
	c.send(reqType, id, payload)

	var events []*protocol.Message
	for {
		msg := c.next()
		if msg.IsResponse() {
			require.Equal(c.t, id, msg.ID)
			return msg, events
		}
		events = append(events, msg)
	}
}

// waitFor reads pushes until one of type event arrives
func (c *testConn) waitFor(event protocol.EventType) *protocol.Message {
	c.t.Helper()
	for {
		msg := c.next()
		if msg.Type == string(event) {
			return msg
		}
	}
}

func decode[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out
}

func eventTypes(events []*protocol.Message) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func laptopSpec(class inventory.PerformanceClass) inventory.LaptopSpec {
	return inventory.LaptopSpec{Brand: "Dell", Model: "XPS 15", CapacityGB: 1024, RAMGB: 32, Class: class}
}

func studentProfile(id string, class inventory.PerformanceClass) inventory.Student {
	return inventory.Student{
		ID:            id,
		Name:          "Student " + id,
		Program:       "Informatics",
		ProgramEnd:    "2099-06-30",
		Email:         id + "@uni.example.com",
		Phone:         "+4740000000",
		RequiredClass: class,
	}
}

func TestSessionWelcome(t *testing.T) {
	srv := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := protocol.NewDecoder(conn, 0).Decode()
	require.NoError(t, err)
	assert.Equal(t, string(protocol.EventWelcome), msg.Type)

	welcome := decode[protocol.Welcome](t, msg)
	assert.NotEmpty(t, welcome.SessionID)
	assert.Equal(t, protocol.PROTOCOL_VERSION, welcome.Protocol)
	assert.Equal(t, "loaner", welcome.Server)
}

func TestNewClientReceivesSnapshot(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	resp, events := c.call(protocol.CreateLaptop, laptopSpec(inventory.ClassHigh))
	require.Nil(t, resp.Error)
	assert.Empty(t, events, "unregistered sessions receive no broadcasts")

	resp, events = c.call(protocol.NewClient, nil)
	require.Nil(t, resp.Error)
	require.Len(t, events, 1)
	assert.Equal(t, string(protocol.EventSnapshot), events[0].Type)

	snapshot := decode[protocol.Snapshot](t, events[0])
	assert.Len(t, snapshot.Laptops, 1)
	assert.Empty(t, snapshot.Students)

	welcome := decode[protocol.Welcome](t, resp)
	assert.NotEmpty(t, welcome.SessionID)
	assert.Equal(t, 1, srv.Registry().Len())

	// Registering twice keeps a single registry entry
	_, _ = c.call(protocol.NewClient, nil)
	assert.Equal(t, 1, srv.Registry().Len())
}

func TestBroadcastReachesEveryRegisteredClient(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	passive := dial(t, srv)
	a.call(protocol.NewClient, nil)
	b.call(protocol.NewClient, nil)

	resp, events := a.call(protocol.CreateLaptop, laptopSpec(inventory.ClassLow))
	require.Nil(t, resp.Error)
	laptop := decode[inventory.Laptop](t, resp)
	assert.Equal(t, []string{string(protocol.EventLaptopCreated)}, eventTypes(events))

	pushed := decode[inventory.Laptop](t, b.waitFor(protocol.EventLaptopCreated))
	assert.Equal(t, laptop.ID, pushed.ID)

	// The passive session only sees its own response
	resp, events = passive.call(protocol.Ping, nil)
	require.Nil(t, resp.Error)
	assert.Empty(t, events)
}

func TestRegisterStudentOverTheWire(t *testing.T) {
	srv := startServer(t)
	admin := dial(t, srv)
	watcher := dial(t, srv)
	watcher.call(protocol.NewClient, nil)

	resp, _ := admin.call(protocol.CreateLaptop, laptopSpec(inventory.ClassHigh))
	require.Nil(t, resp.Error)

	resp, _ = admin.call(protocol.CreateStudent, studentProfile("10000001", inventory.ClassHigh))
	require.Nil(t, resp.Error)
	first := decode[protocol.Assignment](t, resp)
	assert.Equal(t, protocol.OutcomeAssigned, first.Outcome)
	require.NotNil(t, first.Laptop)
	assert.Equal(t, inventory.StateLoaned, first.Laptop.State)

	resp, _ = admin.call(protocol.CreateStudent, studentProfile("10000002", inventory.ClassHigh))
	require.Nil(t, resp.Error)
	second := decode[protocol.Assignment](t, resp)
	assert.Equal(t, protocol.OutcomeQueued, second.Outcome)

	watcher.waitFor(protocol.EventReservationCreated)
	update := decode[protocol.QueueUpdate](t, watcher.waitFor(protocol.EventQueueUpdated))
	assert.Equal(t, inventory.ClassHigh, update.Class)
	require.Len(t, update.Entries, 1)
	assert.Equal(t, "10000002", update.Entries[0].StudentID)

	resp, _ = admin.call(protocol.CompleteReservation, protocol.IDPayload{ID: first.Reservation.ID})
	require.Nil(t, resp.Error)

	resp, _ = admin.call(protocol.ProcessQueues, nil)
	require.Nil(t, resp.Error)
	result := decode[protocol.DrainResult](t, resp)
	assert.Equal(t, protocol.DrainResult{Created: 1, High: 1}, result)

	resp, _ = admin.call(protocol.GetActiveReservations, nil)
	active := decode[[]*inventory.Reservation](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, "10000002", active[0].StudentID)
}

func TestRequestErrorsKeepSessionOpen(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	resp, _ := c.call(protocol.RequestType("teleport_laptop"), nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeBadRequest, resp.Error.Code)

	resp, _ = c.call(protocol.CreateLaptop, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeBadRequest, resp.Error.Code)

	resp, _ = c.call(protocol.CreateLaptop, inventory.LaptopSpec{Brand: "Dell"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeValidation, resp.Error.Code)
	assert.Equal(t, "model", resp.Error.Field)

	resp, _ = c.call(protocol.GetLaptopByUUID, protocol.IDPayload{ID: "00000000-0000-0000-0000-000000000000"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeNotFound, resp.Error.Code)

	resp, _ = c.call(protocol.Ping, nil)
	assert.Nil(t, resp.Error)
}

func TestUpdatesAcceptClassSpellings(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	resp, _ := c.call(protocol.CreateLaptop, laptopSpec(inventory.ClassHigh))
	require.Nil(t, resp.Error)
	laptop := decode[inventory.Laptop](t, resp)

	for _, spelling := range []string{"HIGH", "high_performance", " High-Performance "} {
		spec := laptopSpec(inventory.PerformanceClass(spelling))
		spec.Model = "XPS 17"
		resp, _ = c.call(protocol.UpdateLaptop, protocol.UpdateLaptopPayload{ID: laptop.ID, LaptopSpec: spec})
		require.Nil(t, resp.Error, spelling)
		updated := decode[inventory.Laptop](t, resp)
		assert.Equal(t, inventory.ClassHigh, updated.Class)
		assert.Equal(t, "XPS 17", updated.Model)
	}

	resp, _ = c.call(protocol.UpdateLaptop, protocol.UpdateLaptopPayload{ID: laptop.ID, LaptopSpec: laptopSpec("LOW")})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeValidation, resp.Error.Code)

	resp, _ = c.call(protocol.UpdateLaptop, protocol.UpdateLaptopPayload{ID: laptop.ID, LaptopSpec: laptopSpec("medium")})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeValidation, resp.Error.Code)
	assert.Equal(t, "class", resp.Error.Field)

	resp, _ = c.call(protocol.CreateStudent, studentProfile("10000001", "low_performance"))
	require.Nil(t, resp.Error)

	profile := studentProfile("10000001", "LOW")
	profile.Name = "Renamed Student"
	resp, _ = c.call(protocol.UpdateStudent, profile)
	require.Nil(t, resp.Error)
	student := decode[inventory.Student](t, resp)
	assert.Equal(t, inventory.ClassLow, student.RequiredClass)
	assert.Equal(t, "Renamed Student", student.Name)

	resp, _ = c.call(protocol.UpdateStudent, studentProfile("10000001", "high_performance"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeValidation, resp.Error.Code)
}

func TestMutatingRequestsAreReplayed(t *testing.T) {
	metrics := NewMetrics()
	srv := startServer(t, WithMetrics(metrics))
	c := dial(t, srv)

	first, _ := c.callWithID(protocol.CreateLaptop, "create-1", laptopSpec(inventory.ClassLow))
	require.Nil(t, first.Error)
	second, _ := c.callWithID(protocol.CreateLaptop, "create-1", laptopSpec(inventory.ClassLow))
	require.Nil(t, second.Error)

	assert.Equal(t, decode[inventory.Laptop](t, first).ID, decode[inventory.Laptop](t, second).ID)

	resp, _ := c.call(protocol.GetAllLaptops, nil)
	assert.Len(t, decode[[]*inventory.Laptop](t, resp), 1)

	// A different id is a different request
	third, _ := c.callWithID(protocol.CreateLaptop, "create-2", laptopSpec(inventory.ClassLow))
	assert.NotEqual(t, decode[inventory.Laptop](t, first).ID, decode[inventory.Laptop](t, third).ID)
}

func TestDisconnectRequest(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)
	c.call(protocol.NewClient, nil)
	require.Equal(t, 1, srv.Registry().Len())

	c.send(protocol.Disconnect, "bye", nil)

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := c.dec.Decode()
	assert.True(t, errors.Is(err, io.EOF), "unexpected error %v", err)

	assert.Eventually(t, func() bool {
		return srv.Registry().Len() == 0 && srv.SessionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownDisconnectsClients(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.call(protocol.NewClient, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	for _, c := range []*testConn{a, b} {
		assert.Equal(t, string(protocol.EventDisconnect), c.next().Type)
		c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, err := c.dec.Decode()
		assert.Error(t, err)
	}

	_, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestServerStatus(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)
	c.call(protocol.NewClient, nil)
	c.call(protocol.CreateLaptop, laptopSpec(inventory.ClassHigh))
	c.call(protocol.CreateStudent, studentProfile("10000001", inventory.ClassLow))

	status, err := srv.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 1, status.Registered)
	assert.Equal(t, 4, status.Workers)
	assert.Equal(t, 1, status.Laptops[string(inventory.StateAvailable)])
	assert.Equal(t, 1, status.Queues[string(inventory.ClassLow)])
	assert.Zero(t, status.Queues[string(inventory.ClassHigh)])
}

func TestLargeDrainKeepsWatcherRegistered(t *testing.T) {
	const entries = 150
	srv := startServerWith(t, func(c *Config) {
		// far smaller than the burst a drain of this size produces
		c.Server.SendBuffer = 4
	})

	watcher := dial(t, srv)
	resp, _ := watcher.call(protocol.NewClient, nil)
	require.Nil(t, resp.Error)

	created := make(chan int, 1)
	go func() {
		n := 0
		for n < entries {
			watcher.conn.SetReadDeadline(time.Now().Add(20 * time.Second))
			msg, err := watcher.dec.Decode()
			if err != nil {
				break
			}
			if msg.Type == string(protocol.EventReservationCreated) {
				n++
			}
		}
		created <- n
	}()

	actor := dial(t, srv)
	for i := 0; i < entries; i++ {
		resp, _ := actor.call(protocol.CreateStudent, studentProfile(fmt.Sprintf("%08d", 30000000+i), inventory.ClassHigh))
		require.Nil(t, resp.Error)
	}
	for i := 0; i < entries; i++ {
		resp, _ := actor.call(protocol.CreateLaptop, laptopSpec(inventory.ClassHigh))
		require.Nil(t, resp.Error)
	}

	resp, _ = actor.call(protocol.ProcessQueues, nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, protocol.DrainResult{Created: entries, High: entries}, decode[protocol.DrainResult](t, resp))

	select {
	case n := <-created:
		assert.Equal(t, entries, n, "watcher must see every reservation_created")
	case <-time.After(30 * time.Second):
		t.Fatal("watcher did not receive the drain events")
	}
	assert.Equal(t, 1, srv.Registry().Len())
}
