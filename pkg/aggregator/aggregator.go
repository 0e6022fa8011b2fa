package aggregator

import (
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/util"
)

const DefaultWindowDays = 7

type Options struct {
	// Location decides which calendar day an event falls on
	Location *time.Location
	Now      func() time.Time
}

// Aggregator keeps every ingested event alongside incrementally maintained per dimension counts
type Aggregator struct {
	mutex sync.RWMutex

	location *time.Location
	now      func() time.Time

	events   map[ctdf.EventType][]ctdf.Event
	records  map[ctdf.EventType]map[string]int
	counts   map[ctdf.EventType]map[string]int
	ingested map[ctdf.EventType]int
}

func New(options Options) *Aggregator {
	if options.Location == nil {
		options.Location = time.UTC
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	return &Aggregator{
		location: options.Location,
		now:      options.Now,
		events:   map[ctdf.EventType][]ctdf.Event{},
		records:  map[ctdf.EventType]map[string]int{},
		counts:   map[ctdf.EventType]map[string]int{},
		ingested: map[ctdf.EventType]int{},
	}
}

func (a *Aggregator) Location() *time.Location {
	return a.location
}

// Ingest never rejects an event, one without a vehicle is counted against the unknown dimension.
// An event for a record already held replaces it and a removal event retracts it.
func (a *Aggregator) Ingest(event ctdf.Event) {
	if event.Removed {
		a.Remove(event.Type, event.RecordID)
		return
	}

	event.DimensionKey = event.Dimension()
	event.Fields = maps.Clone(event.Fields)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.ingested[event.Type]++

	records, ok := a.records[event.Type]
	if !ok {
		records = map[string]int{}
		a.records[event.Type] = records
	}

	if i, held := records[event.RecordID]; held && event.RecordID != "" {
		a.uncount(event.Type, a.events[event.Type][i].DimensionKey)
		a.events[event.Type][i] = event
	} else {
		if event.RecordID != "" {
			records[event.RecordID] = len(a.events[event.Type])
		}
		a.events[event.Type] = append(a.events[event.Type], event)
	}

	counts, ok := a.counts[event.Type]
	if !ok {
		counts = map[string]int{}
		a.counts[event.Type] = counts
	}
	counts[event.DimensionKey]++
}

// Remove drops the event held for the record, reporting whether there was one
func (a *Aggregator) Remove(eventType ctdf.EventType, recordID string) bool {
	if recordID == "" {
		return false
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	records := a.records[eventType]
	i, ok := records[recordID]
	if !ok {
		return false
	}

	a.uncount(eventType, a.events[eventType][i].DimensionKey)
	a.events[eventType] = slices.Delete(a.events[eventType], i, i+1)

	delete(records, recordID)
	for id, position := range records {
		if position > i {
			records[id] = position - 1
		}
	}

	return true
}

// uncount must be called with the mutex held
func (a *Aggregator) uncount(eventType ctdf.EventType, dimension string) {
	counts := a.counts[eventType]
	counts[dimension]--
	if counts[dimension] <= 0 {
		delete(counts, dimension)
	}
}

func (a *Aggregator) IngestAll(events []ctdf.Event) {
	for _, event := range events {
		a.Ingest(event)
	}
}

func (a *Aggregator) CountsByDimension(eventType ctdf.EventType) map[string]int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	counts := maps.Clone(a.counts[eventType])
	if counts == nil {
		counts = map[string]int{}
	}

	return counts
}

// RecomputeCounts rebuilds the per dimension counts from the stored events
func (a *Aggregator) RecomputeCounts(eventType ctdf.EventType) map[string]int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	counts := map[string]int{}
	for _, event := range a.events[eventType] {
		counts[event.Dimension()]++
	}

	return counts
}

func (a *Aggregator) Total(eventType ctdf.EventType) int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return len(a.events[eventType])
}

// TimeSeries returns exactly windowDays points ending today, days without events are zero
func (a *Aggregator) TimeSeries(eventType ctdf.EventType, windowDays int) []ctdf.TimeSeriesPoint {
	days := util.TrailingDays(a.now(), windowDays, a.location)

	points := make([]ctdf.TimeSeriesPoint, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		points[i] = ctdf.TimeSeriesPoint{Date: day}
		index[day] = i
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for _, event := range a.events[eventType] {
		if !event.HasTimestamp() {
			continue
		}

		if i, ok := index[util.DateKey(event.OccurredAt, a.location)]; ok {
			points[i].Count++
		}
	}

	return points
}

func (a *Aggregator) Distribution(eventType ctdf.EventType, field string) map[string]int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	distribution := map[string]int{}
	for _, event := range a.events[eventType] {
		distribution[event.Field(field)]++
	}

	return distribution
}

// Buckets returns the dimension counts largest first
func (a *Aggregator) Buckets(eventType ctdf.EventType) []ctdf.AggregateBucket {
	return SortBuckets(a.CountsByDimension(eventType))
}

// Labels is the sorted union of every dimension seen across all event types
func (a *Aggregator) Labels() []string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var labels []string
	for _, counts := range a.counts {
		for dimension := range counts {
			labels = append(labels, dimension)
		}
	}

	labels = util.SortedUniqueStrings(labels)
	if labels == nil {
		labels = []string{}
	}

	return labels
}

func (a *Aggregator) Events(eventType ctdf.EventType) []ctdf.Event {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	events := make([]ctdf.Event, len(a.events[eventType]))
	copy(events, a.events[eventType])

	return events
}

func SortBuckets(counts map[string]int) []ctdf.AggregateBucket {
	buckets := make([]ctdf.AggregateBucket, 0, len(counts))
	for dimension, count := range counts {
		buckets = append(buckets, ctdf.AggregateBucket{DimensionKey: dimension, Count: count})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].DimensionKey < buckets[j].DimensionKey
	})

	return buckets
}

// StatusDistribution breaks the fleet down by status, vehicles without one are unspecified
func StatusDistribution(vehicles []*ctdf.Vehicle) map[string]int {
	distribution := map[string]int{}
	for _, vehicle := range vehicles {
		if vehicle == nil {
			continue
		}

		status := vehicle.Status
		if status == "" {
			status = ctdf.UnspecifiedFieldValue
		}
		distribution[status]++
	}

	return distribution
}
