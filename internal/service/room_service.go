// Package service holds the room operations exposed over HTTP: creating room ids, describing a
// room, and moving whole snapshots in and out as wireframe files.
package service

import (
	"context"
	"fmt"
	"io"

	"github.com/wirejam/wirejam/internal/gateway"
	"github.com/wirejam/wirejam/internal/idgen"
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/wireframe"
)

// RoomService works on rooms through the gateway hub, so imports reach connected members.
type RoomService struct {
	hub *gateway.Hub
	idg IDGenerator
}

// IDGenerator produces room ids.
type IDGenerator interface {
	New() (string, error)
}

type roomIDGen struct{}

func (roomIDGen) New() (string, error) { return idgen.NewRoomID() }

func NewRoomIDGenerator() IDGenerator {
	return roomIDGen{}
}

func NewRoomService(hub *gateway.Hub, idg IDGenerator) *RoomService {
	return &RoomService{hub: hub, idg: idg}
}

// Create picks an id no live or stored room is using. Rooms themselves come into being on the
// first join.
func (s *RoomService) Create(ctx context.Context) (string, error) {
	const maxRetries = 10

	for i := 0; i < maxRetries; i++ {
		roomId, err := s.idg.New()
		if err != nil {
			return "", err
		}
		_, _, exists, err := s.Get(ctx, roomId)
		if err != nil {
			return "", err
		}
		if !exists {
			return roomId, nil
		}
	}
	return "", ErrRoomIDGenerationFailed
}

// Get describes a room. A room exists while it has members or stored shapes.
func (s *RoomService) Get(ctx context.Context, roomId string) (models.RoomSummary, []models.Member, bool, error) {
	n, err := s.hub.ShapeCount(ctx, roomId)
	if err != nil {
		return models.RoomSummary{}, nil, false, err
	}
	members := s.hub.Members(roomId)
	summary := models.RoomSummary{RoomID: roomId, MemberCount: len(members), ShapeCount: n}
	return summary, members, n > 0 || len(members) > 0, nil
}

// Export renders the room snapshot as a wireframe file.
func (s *RoomService) Export(ctx context.Context, roomId string) (wireframe.File, error) {
	_, _, exists, err := s.Get(ctx, roomId)
	if err != nil {
		return wireframe.File{}, err
	}
	if !exists {
		return wireframe.File{}, ErrRoomNotFound
	}
	shapes, err := s.hub.Snapshot(ctx, roomId)
	if err != nil {
		return wireframe.File{}, err
	}
	return wireframe.New(shapes, wireframe.Canvas{
		Width:  wireframe.DefaultCanvasWidth,
		Height: wireframe.DefaultCanvasHeight,
	}), nil
}

// Import replaces the room snapshot with the shapes of a wireframe file and returns how many
// were loaded. Members see the new snapshot as a load_shapes message.
func (s *RoomService) Import(ctx context.Context, roomId string, r io.Reader) (int, error) {
	f, err := wireframe.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWireframe, err)
	}
	if err := s.hub.ReplaceShapes(ctx, roomId, f.Shapes); err != nil {
		return 0, fmt.Errorf("replace shapes: %w", err)
	}
	return len(f.Shapes), nil
}
