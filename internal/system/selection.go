package system

import (
	"math"

	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/solarlune/resolv"
	"go.uber.org/zap"
)

const (
	// BoxHalfExtent is half the side of a box's square footprint.
	BoxHalfExtent = 1.0

	// resolv bounds objects as if they were whole pixels wide, so world
	// units are scaled up before indexing.
	indexScale    = 100
	minCellSize   = 2 * BoxHalfExtent * indexScale
	maxIndexCells = 64
	cursorSize    = 1

	tagBox    = "box"
	tagCursor = "cursor"
)

// SelectionSystem picks what the cursor points at. Each step it rebuilds a
// spatial index of box footprints, casts the cursor ray through the camera
// onto the ground and records the nearest box hit, or the ground point.
type SelectionSystem struct {
	log *zap.Logger
}

func NewSelectionSystem(log *zap.Logger) *SelectionSystem {
	return &SelectionSystem{log: log}
}

func (s *SelectionSystem) Name() string               { return "selection" }
func (s *SelectionSystem) Priority() coresys.Priority { return coresys.PrioritySelection }

func (s *SelectionSystem) Access() coresys.Access {
	return coresys.Access{
		Reads:  []string{sim.CompMovement, sim.ResCamera, sim.ResCursor},
		Writes: []string{sim.CompSelection, sim.ResHover},
	}
}

func (s *SelectionSystem) Run(ctx *sim.Context) {
	ctx.Store.Selection.Each(func(_ ecs.Entity, sel *component.Selection) {
		sel.Hovered = false
	})

	cam := ctx.Res.Camera
	if cam == nil {
		ctx.Res.CurrentHover = component.Hover{}
		return
	}
	ray, err := cam.Ray(ctx.Res.Cursor)
	if err != nil {
		ctx.Res.CurrentHover = component.Hover{}
		return
	}
	ground, err := ray.GroundPoint()
	if err != nil {
		ctx.Res.CurrentHover = component.Hover{}
		return
	}

	if e, ok := PickBox(ctx.Store, ground); ok {
		if sel, ok := ctx.Store.Selection.Get(e); ok {
			sel.Hovered = true
		}
		ctx.Res.CurrentHover = component.HoverOnEntity(e)
		return
	}
	ctx.Res.CurrentHover = component.HoverOnGround(ground)
}

// HandleMessage promotes the hovered entity to the single selection. The
// previous selection is cleared even when nothing is hovered.
func (s *SelectionSystem) HandleMessage(ctx *sim.Context, msg message.Message) {
	if _, ok := msg.(message.SelectEntity); !ok {
		return
	}
	if prev := ctx.Res.CurrentSelection; !prev.IsNil() {
		if sel, ok := ctx.Store.Selection.Get(prev); ok {
			sel.Selected = false
		}
	}
	ctx.Res.CurrentSelection = ecs.Nil

	hover := ctx.Res.CurrentHover
	if hover.Kind != component.HoverEntity || !ctx.Store.Alive(hover.Entity) {
		return
	}
	sel, ok := ctx.Store.Selection.Get(hover.Entity)
	if !ok {
		return
	}
	sel.Selected = true
	ctx.Res.CurrentSelection = hover.Entity
	s.log.Debug("entity selected", zap.Uint64("entity", uint64(hover.Entity)))
}

// PickBox returns the box whose footprint contains p. Candidates come from
// a resolv grid built around the selectable entities; overlapping hits go
// to the box centered nearest p, then to the lowest entity id.
func PickBox(store *sim.Store, p mgl32.Vec3) (ecs.Entity, bool) {
	type box struct {
		e   ecs.Entity
		pos mgl32.Vec3
	}
	var boxes []box
	minX, minY := float64(p.X()), float64(p.Y())
	maxX, maxY := minX, minY
	ecs.Each2(store.Selection, store.Movement, func(e ecs.Entity, _ *component.Selection, m *component.Movement) {
		boxes = append(boxes, box{e: e, pos: m.Position})
		x, y := float64(m.Position.X()), float64(m.Position.Y())
		minX = math.Min(minX, x-BoxHalfExtent)
		minY = math.Min(minY, y-BoxHalfExtent)
		maxX = math.Max(maxX, x+BoxHalfExtent)
		maxY = math.Max(maxY, y+BoxHalfExtent)
	})
	if len(boxes) == 0 {
		return ecs.Nil, false
	}

	// Index coordinates are world offsets from (ox, oy) times indexScale.
	ox, oy := math.Floor(minX)-1, math.Floor(minY)-1
	toIndex := func(v, origin float64) float64 { return (v - origin) * indexScale }

	cell := cellSize(toIndex(maxX, minX), toIndex(maxY, minY))
	w := int(math.Ceil(toIndex(maxX, ox))) + 2*cell
	h := int(math.Ceil(toIndex(maxY, oy))) + 2*cell
	space := resolv.NewSpace(w, h, cell, cell)

	// Footprints are padded by one index unit on each side so a cursor on
	// the very edge still lands in an indexed cell.
	side := 2*BoxHalfExtent*indexScale + 2
	for _, b := range boxes {
		obj := resolv.NewObject(
			toIndex(float64(b.pos.X())-BoxHalfExtent, ox)-1,
			toIndex(float64(b.pos.Y())-BoxHalfExtent, oy)-1,
			side, side,
			tagBox,
		)
		obj.Data = b.e
		space.Add(obj)
	}
	cursor := resolv.NewObject(toIndex(float64(p.X()), ox), toIndex(float64(p.Y()), oy), cursorSize, cursorSize, tagCursor)
	space.Add(cursor)

	hit := cursor.Check(0, 0, tagBox)
	if hit == nil {
		return ecs.Nil, false
	}

	best, bestDist, found := ecs.Nil, float32(0), false
	for _, obj := range hit.ObjectsByTags(tagBox) {
		e, ok := obj.Data.(ecs.Entity)
		if !ok {
			continue
		}
		m, ok := store.Movement.Get(e)
		if !ok || !footprintContains(m.Position, p) {
			continue
		}
		dx, dy := p.X()-m.Position.X(), p.Y()-m.Position.Y()
		d := dx*dx + dy*dy
		if !found || d < bestDist || (d == bestDist && e < best) {
			best, bestDist, found = e, d, true
		}
	}
	return best, found
}

func footprintContains(center, p mgl32.Vec3) bool {
	dx := math.Abs(float64(p.X() - center.X()))
	dy := math.Abs(float64(p.Y() - center.Y()))
	return dx <= BoxHalfExtent && dy <= BoxHalfExtent
}

// cellSize keeps the grid at most maxIndexCells wide however far apart the
// boxes are. Spans are in index units.
func cellSize(spanX, spanY float64) int {
	span := math.Max(spanX, spanY)
	c := int(math.Ceil(span / maxIndexCells))
	if c < minCellSize {
		c = minCellSize
	}
	return c
}
