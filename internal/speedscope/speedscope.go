package speedscope

import (
	"github.com/getsentry/vmtrace/internal/nodetree"
)

const (
	ValueUnitNanoseconds ValueUnit = "nanoseconds"

	EventTypeOpenFrame  EventType = "O"
	EventTypeCloseFrame EventType = "C"

	ProfileTypeEvented ProfileType = "evented"
)

type (
	Frame struct {
		File          string `json:"file,omitempty"`
		Image         string `json:"image,omitempty"`
		IsApplication bool   `json:"is_application"`
		Line          uint32 `json:"line,omitempty"`
		Name          string `json:"name"`
		Path          string `json:"path,omitempty"`
	}

	Event struct {
		Type  EventType `json:"type"`
		Frame int       `json:"frame"`
		At    uint64    `json:"at"`
	}

	EventedProfile struct {
		EndValue   uint64      `json:"endValue"`
		Events     []Event     `json:"events"`
		Name       string      `json:"name"`
		StartValue uint64      `json:"startValue"`
		ThreadID   uint64      `json:"threadID"`
		Type       ProfileType `json:"type"`
		Unit       ValueUnit   `json:"unit"`
	}

	SharedData struct {
		Frames []Frame `json:"frames"`
	}

	EventType   string
	ProfileType string
	ValueUnit   string

	Output struct {
		ActiveProfileIndex int           `json:"activeProfileIndex"`
		AndroidClock       string        `json:"androidClock,omitempty"`
		DurationNS         uint64        `json:"durationNS"`
		Platform           string        `json:"platform"`
		ProfileID          string        `json:"profileID"`
		Profiles           []interface{} `json:"profiles"`
		ProjectID          uint64        `json:"projectID"`
		Shared             SharedData    `json:"shared"`
		Version            string        `json:"version"`
	}

	// Thread is the rendered call tree of a single thread.
	Thread struct {
		ID    uint64
		Name  string
		Nodes []*nodetree.Node
	}
)

type builder struct {
	frames       []Frame
	frameIndexes map[uint64]int
}

func (b *builder) frameIndex(n *nodetree.Node) int {
	if i, ok := b.frameIndexes[n.Frame.MethodID]; ok {
		return i
	}
	i := len(b.frames)
	b.frameIndexes[n.Frame.MethodID] = i
	b.frames = append(b.frames, Frame{
		File:          n.Frame.File,
		Image:         n.Frame.Package,
		IsApplication: n.IsApplication,
		Line:          n.Frame.Line,
		Name:          n.Frame.Function,
		Path:          n.Frame.Path,
	})
	return i
}

func (b *builder) emit(p *EventedProfile, n *nodetree.Node) {
	frame := b.frameIndex(n)
	p.Events = append(p.Events, Event{Type: EventTypeOpenFrame, Frame: frame, At: b.at(p, n.StartNS)})
	for _, child := range n.Children {
		b.emit(p, child)
	}
	p.Events = append(p.Events, Event{Type: EventTypeCloseFrame, Frame: frame, At: b.at(p, n.EndNS)})
}

// at keeps events of a profile in chronological order.
func (b *builder) at(p *EventedProfile, ts uint64) uint64 {
	if len(p.Events) > 0 {
		if last := p.Events[len(p.Events)-1].At; ts < last {
			return last
		}
	}
	return ts
}

// FromThreads builds an evented profile per thread. The main thread, if
// present, is the active profile.
func FromThreads(threads []Thread, mainThreadID uint64) Output {
	b := builder{
		frames:       make([]Frame, 0),
		frameIndexes: make(map[uint64]int),
	}
	var o Output
	o.Profiles = make([]interface{}, 0, len(threads))
	var start, end uint64
	for _, t := range threads {
		if len(t.Nodes) == 0 {
			continue
		}
		p := &EventedProfile{
			Events:     make([]Event, 0),
			Name:       t.Name,
			StartValue: t.Nodes[0].StartNS,
			ThreadID:   t.ID,
			Type:       ProfileTypeEvented,
			Unit:       ValueUnitNanoseconds,
		}
		for _, n := range t.Nodes {
			b.emit(p, n)
		}
		p.EndValue = p.Events[len(p.Events)-1].At
		if t.ID == mainThreadID {
			o.ActiveProfileIndex = len(o.Profiles)
		}
		if len(o.Profiles) == 0 || p.StartValue < start {
			start = p.StartValue
		}
		if p.EndValue > end {
			end = p.EndValue
		}
		o.Profiles = append(o.Profiles, p)
	}
	if end > start {
		o.DurationNS = end - start
	}
	o.Shared = SharedData{Frames: b.frames}
	return o
}
