package model

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestDiagram(t *testing.T, nodeIDs ...string) *Diagram {
	t.Helper()
	d, err := buildDiagram(nodeIDs...)
	if err != nil {
		t.Fatalf("FromGraph failed: %v", err)
	}
	return d
}

func buildDiagram(nodeIDs ...string) (*Diagram, error) {
	nodes := make([]Node, len(nodeIDs))
	for i, id := range nodeIDs {
		nodes[i] = Node{ID: id, Label: "Node " + id, Type: NodeAuxiliary}
	}
	return FromGraph(nodes, nil, WithIDGenerator(NewSequence(100)), WithClock(fixedClock()))
}

func TestAddNode_AppliesTemplateAndMarksChanged(t *testing.T) {
	d := NewDiagram(WithIDGenerator(NewSequence(1)), WithClock(fixedClock()))
	if d.Changed() {
		t.Fatal("new diagram should not be marked changed")
	}
	created := d.CreatedAt

	value := 50.0
	n := d.AddNode(Position{X: 10, Y: 20}, Template{Label: "Trust", Type: NodeStock, Value: &value, Category: "social"})

	if n.ID != "1" {
		t.Errorf("expected id 1, got %q", n.ID)
	}
	if n.Label != "Trust" || n.Type != NodeStock || n.Category != "social" {
		t.Errorf("template not applied: %+v", n)
	}
	if n.Value == nil || *n.Value != 50 {
		t.Errorf("expected value 50, got %v", n.Value)
	}
	if n.Position != (Position{X: 10, Y: 20}) {
		t.Errorf("unexpected position %+v", n.Position)
	}
	if !d.Changed() {
		t.Error("AddNode should mark the diagram changed")
	}
	if !d.UpdatedAt.After(created) {
		t.Error("AddNode should stamp UpdatedAt")
	}

	value = 0
	if *d.Nodes[0].Value != 50 {
		t.Error("node should not share the template's value pointer")
	}
}

func TestRevision_CountsAppliedMutations(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDiagram(WithIDGenerator(NewSequence(1)), WithClock(func() time.Time { return now }))
	if d.Revision() != 0 {
		t.Fatalf("new diagram revision = %d", d.Revision())
	}
	d.AddNode(Position{}, Template{})
	d.AddNode(Position{X: 200}, Template{})
	d.MoveNode("1", Position{X: 5, Y: 5})
	if d.Revision() != 3 {
		t.Errorf("revision = %d after three edits, want 3", d.Revision())
	}
	if !d.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v under a fixed clock", d.UpdatedAt)
	}

	d.AddLink("1", "missing", PolarityPositive)
	if d.Revision() != 3 {
		t.Errorf("rejected command bumped revision to %d", d.Revision())
	}
}

func TestAddNode_GenericDefaults(t *testing.T) {
	d := NewDiagram(WithIDGenerator(NewSequence(1)))
	n := d.AddNode(Position{}, Template{})
	if n.Label != "New Variable" || n.Type != NodeAuxiliary {
		t.Errorf("expected generic defaults, got %+v", n)
	}
}

func TestAddNode_SkipsIDsTakenByStarterGraph(t *testing.T) {
	d := newTestDiagram(t, "1", "2")
	d.ids = NewSequence(1)
	n := d.AddNode(Position{}, DefaultTemplate())
	if n.ID != "3" {
		t.Errorf("expected first free id 3, got %q", n.ID)
	}
}

func TestMoveNode(t *testing.T) {
	d := newTestDiagram(t, "1")
	res := d.MoveNode("1", Position{X: 5, Y: 6})
	if !res.OK() {
		t.Fatalf("expected applied, got %v", res.Status)
	}
	n, _ := d.Node("1")
	if n.Position != (Position{X: 5, Y: 6}) {
		t.Errorf("position not updated: %+v", n.Position)
	}
	if n.Label != "Node 1" {
		t.Errorf("move should touch position only, label now %q", n.Label)
	}
}

func TestMoveNode_MissingIDIsIgnored(t *testing.T) {
	d := newTestDiagram(t, "1")
	before := d.Snapshot()
	res := d.MoveNode("nope", Position{X: 1})
	if res.Status != StatusIgnored {
		t.Fatalf("expected ignored, got %v", res.Status)
	}
	if res.Err != nil {
		t.Errorf("ignored results carry no error, got %v", res.Err)
	}
	if !reflect.DeepEqual(before.Nodes, d.Nodes) || d.Changed() {
		t.Error("ignored move should not mutate the diagram")
	}
}

// The second link between the same ordered pair is rejected and the first
// keeps its polarity.
func TestAddLink_DuplicateRejected(t *testing.T) {
	d := newTestDiagram(t, "1", "2")

	first := d.AddLink("1", "2", PolarityPositive)
	if !first.OK() {
		t.Fatalf("first link should be created: %v", first.Err)
	}
	before := d.Snapshot()

	second := d.AddLink("1", "2", PolarityNegative)
	if second.Status != StatusRejected {
		t.Fatalf("expected rejection, got %v", second.Status)
	}
	if !errors.Is(second.Err, ErrDuplicateLink) {
		t.Errorf("expected ErrDuplicateLink, got %v", second.Err)
	}
	if second.LinkID != first.LinkID {
		t.Errorf("rejection should point at the existing link %q, got %q", first.LinkID, second.LinkID)
	}
	if len(d.Links) != 1 || d.Links[0].Polarity != PolarityPositive {
		t.Fatalf("expected one positive link, got %+v", d.Links)
	}
	if !reflect.DeepEqual(before.Links, d.Links) || !before.UpdatedAt.Equal(d.UpdatedAt) {
		t.Error("rejected link must leave the diagram unchanged")
	}
}

func TestAddLink_ReverseDirectionAllowed(t *testing.T) {
	d := newTestDiagram(t, "A", "B")
	if !d.AddLink("A", "B", PolarityPositive).OK() {
		t.Fatal("A→B should be created")
	}
	if !d.AddLink("B", "A", PolarityPositive).OK() {
		t.Fatal("B→A is a distinct directed pair and should be created")
	}
	if len(d.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(d.Links))
	}
}

func TestAddLink_Defaults(t *testing.T) {
	d := newTestDiagram(t, "1", "2")
	res := d.AddLink("1", "2", PolarityNegative)
	l, ok := d.Link(res.LinkID)
	if !ok {
		t.Fatal("created link not found")
	}
	if l.Strength == nil || *l.Strength != 1 {
		t.Errorf("expected default strength 1, got %v", l.Strength)
	}
	if l.Delay != nil {
		t.Errorf("expected no delay, got %v", *l.Delay)
	}
	if l.LineType != LineStraight {
		t.Errorf("expected straight line type, got %q", l.LineType)
	}
}

func TestAddLink_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  CreateLink
		want error
	}{
		{"UnknownSource", CreateLink{SourceID: "x", TargetID: "2", Polarity: PolarityPositive}, ErrUnknownNode},
		{"UnknownTarget", CreateLink{SourceID: "1", TargetID: "x", Polarity: PolarityPositive}, ErrUnknownNode},
		{"SelfLink", CreateLink{SourceID: "1", TargetID: "1", Polarity: PolarityPositive}, ErrSelfLink},
		{"BadPolarity", CreateLink{SourceID: "1", TargetID: "2", Polarity: "up"}, ErrInvalidCommand},
		{"BadLineType", CreateLink{SourceID: "1", TargetID: "2", Polarity: PolarityPositive, LineType: "zigzag"}, ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDiagram(t, "1", "2")
			res := d.Dispatch(tt.cmd)
			if res.Status != StatusRejected || !errors.Is(res.Err, tt.want) {
				t.Fatalf("expected rejection with %v, got %v / %v", tt.want, res.Status, res.Err)
			}
			if len(d.Links) != 0 || d.Changed() {
				t.Error("rejected command must not mutate")
			}
		})
	}
}

// Deleting a node removes exactly its incident links.
func TestDeleteNode_Cascades(t *testing.T) {
	d := newTestDiagram(t, "1", "2", "3")
	l12 := d.AddLink("1", "2", PolarityPositive).LinkID
	l31 := d.AddLink("3", "1", PolarityNegative).LinkID
	l23 := d.AddLink("2", "3", PolarityPositive).LinkID
	d.Annotations[l12] = "3 month lag"
	d.Annotations[l23] = "immediate"

	res := d.DeleteNode("1")
	if !res.OK() {
		t.Fatalf("expected applied, got %v", res.Status)
	}
	if !reflect.DeepEqual(res.RemovedLinks, []string{l12, l31}) {
		t.Errorf("RemovedLinks = %v, want [%s %s]", res.RemovedLinks, l12, l31)
	}
	if _, ok := d.Node("1"); ok {
		t.Error("node 1 should be gone")
	}
	for _, id := range []string{"2", "3"} {
		if _, ok := d.Node(id); !ok {
			t.Errorf("node %s should be untouched", id)
		}
	}
	if len(d.Links) != 1 || d.Links[0].ID != l23 {
		t.Errorf("expected only 2→3 to remain, got %+v", d.Links)
	}
	if _, ok := d.Annotations[l12]; ok {
		t.Error("annotation of a cascaded link should be dropped")
	}
	if d.Annotations[l23] != "immediate" {
		t.Error("unrelated annotation should survive")
	}
}

func TestDeleteLink(t *testing.T) {
	d := newTestDiagram(t, "1", "2")
	id := d.AddLink("1", "2", PolarityPositive).LinkID
	d.Annotations[id] = "note"

	if res := d.DeleteLink(id); !res.OK() {
		t.Fatalf("expected applied, got %v", res.Status)
	}
	if len(d.Links) != 0 {
		t.Error("link should be removed")
	}
	if _, ok := d.Annotations[id]; ok {
		t.Error("link annotation should be removed with the link")
	}
	if res := d.DeleteLink(id); res.Status != StatusIgnored {
		t.Errorf("second delete should be ignored, got %v", res.Status)
	}
}

func TestUpdateNode_ShallowMerge(t *testing.T) {
	d := newTestDiagram(t, "1")
	label := "Public Trust"
	value := 0.7
	res := d.Dispatch(UpdateNode{ID: "1", Patch: NodePatch{Label: &label, Value: &value}})
	if !res.OK() {
		t.Fatalf("update failed: %v", res.Err)
	}
	n, _ := d.Node("1")
	if n.Label != "Public Trust" || n.Value == nil || *n.Value != 0.7 {
		t.Errorf("patch not merged: %+v", n)
	}
	if n.Type != NodeAuxiliary {
		t.Errorf("unpatched fields should be kept, type now %q", n.Type)
	}

	bad := NodeType("cloud")
	if res := d.Dispatch(UpdateNode{ID: "1", Patch: NodePatch{Type: &bad}}); res.Status != StatusRejected {
		t.Errorf("invalid type patch should be rejected, got %v", res.Status)
	}
}

func TestUpdateLink_ShallowMerge(t *testing.T) {
	d := newTestDiagram(t, "1", "2")
	id := d.AddLink("1", "2", PolarityPositive).LinkID
	curved := LineCurved
	delay := 3.0
	res := d.Dispatch(UpdateLink{ID: id, Patch: LinkPatch{LineType: &curved, Delay: &delay}})
	if !res.OK() {
		t.Fatalf("update failed: %v", res.Err)
	}
	l, _ := d.Link(id)
	if l.LineType != LineCurved || l.Delay == nil || *l.Delay != 3 {
		t.Errorf("patch not merged: %+v", l)
	}
	if l.Polarity != PolarityPositive || l.SourceID != "1" {
		t.Errorf("unpatched fields should be kept: %+v", l)
	}
	if res := d.Dispatch(UpdateLink{ID: "missing"}); res.Status != StatusIgnored {
		t.Errorf("missing link should be ignored, got %v", res.Status)
	}
}

func TestFromGraph_Validation(t *testing.T) {
	nodes := []Node{{ID: "1", Type: NodeStock}, {ID: "2"}}
	tests := []struct {
		name  string
		nodes []Node
		links []Link
		ok    bool
	}{
		{"Valid", nodes, []Link{{ID: "a", SourceID: "1", TargetID: "2", Polarity: PolarityPositive}}, true},
		{"DuplicateNode", []Node{{ID: "1"}, {ID: "1"}}, nil, false},
		{"DanglingLink", nodes, []Link{{ID: "a", SourceID: "1", TargetID: "9", Polarity: PolarityPositive}}, false},
		{"DuplicatePair", nodes, []Link{
			{ID: "a", SourceID: "1", TargetID: "2", Polarity: PolarityPositive},
			{ID: "b", SourceID: "1", TargetID: "2", Polarity: PolarityNegative},
		}, false},
		{"DuplicateLinkID", nodes, []Link{
			{ID: "a", SourceID: "1", TargetID: "2", Polarity: PolarityPositive},
			{ID: "a", SourceID: "2", TargetID: "1", Polarity: PolarityNegative},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := FromGraph(tt.nodes, tt.links)
			if (err == nil) != tt.ok {
				t.Fatalf("FromGraph error = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && d.Nodes[1].Type != NodeAuxiliary {
				t.Errorf("missing node type should default to auxiliary, got %q", d.Nodes[1].Type)
			}
		})
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d := NewDiagram()
	res := d.Dispatch(nil)
	if res.Status != StatusRejected || !errors.Is(res.Err, ErrInvalidCommand) {
		t.Errorf("nil command should be rejected, got %v / %v", res.Status, res.Err)
	}
}

func TestMarkSaved(t *testing.T) {
	d := newTestDiagram(t, "1")
	d.MoveNode("1", Position{X: 1})
	d.MarkSaved()
	if d.Changed() {
		t.Error("MarkSaved should clear the changed flag")
	}
}

// referentiallyIntact reports whether every link endpoint names a node.
func referentiallyIntact(d *Diagram) error {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		ids[n.ID] = true
	}
	pairs := make(map[[2]string]bool)
	for _, l := range d.Links {
		if !ids[l.SourceID] || !ids[l.TargetID] {
			return fmt.Errorf("link %s dangles: %s→%s", l.ID, l.SourceID, l.TargetID)
		}
		key := [2]string{l.SourceID, l.TargetID}
		if pairs[key] {
			return fmt.Errorf("duplicate directed pair %v", key)
		}
		pairs[key] = true
	}
	return nil
}

func TestProperty_ReferentialIntegrity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDiagram(WithIDGenerator(NewSequence(1)))
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			var ids []string
			for _, n := range d.Nodes {
				ids = append(ids, n.ID)
			}
			ids = append(ids, "ghost")
			pick := func(label string) string {
				return rapid.SampledFrom(ids).Draw(t, label)
			}
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				d.AddNode(Position{X: float64(i)}, DefaultTemplate())
			case 1:
				d.MoveNode(pick("move"), Position{Y: float64(i)})
			case 2:
				d.DeleteNode(pick("delete"))
			case 3:
				pol := rapid.SampledFrom([]Polarity{PolarityPositive, PolarityNegative}).Draw(t, "pol")
				d.AddLink(pick("src"), pick("dst"), pol)
			case 4:
				if len(d.Links) > 0 {
					d.DeleteLink(rapid.SampledFrom(d.Links).Draw(t, "link").ID)
				}
			}
			if err := referentiallyIntact(d); err != nil {
				t.Fatalf("after step %d: %v", i, err)
			}
		}
	})
}

func TestProperty_CascadeRemovesExactlyIncidentLinks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 8).Draw(t, "nodes")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("n%d", i)
		}
		d, err := buildDiagram(ids...)
		if err != nil {
			t.Fatal(err)
		}
		for i := rapid.IntRange(0, 20).Draw(t, "links"); i > 0; i-- {
			d.AddLink(rapid.SampledFrom(ids).Draw(t, "src"), rapid.SampledFrom(ids).Draw(t, "dst"), PolarityPositive)
		}
		victim := rapid.SampledFrom(ids).Draw(t, "victim")

		var wantKept []Link
		for _, l := range d.Links {
			if l.SourceID != victim && l.TargetID != victim {
				wantKept = append(wantKept, l)
			}
		}
		d.DeleteNode(victim)
		if len(d.Links) != len(wantKept) {
			t.Fatalf("expected %d links after cascade, got %d", len(wantKept), len(d.Links))
		}
		for i := range wantKept {
			if d.Links[i].ID != wantKept[i].ID {
				t.Fatalf("unexpected survivor order: %v vs %v", d.Links, wantKept)
			}
		}
	})
}

func TestProperty_DedupIsDirectional(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d, err := buildDiagram("A", "B")
		if err != nil {
			t.Fatal(err)
		}
		first := rapid.SampledFrom([]Polarity{PolarityPositive, PolarityNegative}).Draw(t, "first")
		second := rapid.SampledFrom([]Polarity{PolarityPositive, PolarityNegative}).Draw(t, "second")
		d.AddLink("A", "B", first)
		if d.AddLink("A", "B", second).OK() {
			t.Fatal("duplicate forward link accepted")
		}
		if !d.AddLink("B", "A", second).OK() {
			t.Fatal("reverse link rejected")
		}
	})
}
