package model

// SchedulerKind selects a scheduling policy.
type SchedulerKind string

const (
	SchedulerFCFS       SchedulerKind = "fcfs"
	SchedulerRoundRobin SchedulerKind = "round-robin"
	SchedulerSJN        SchedulerKind = "sjn"
	SchedulerHybrid     SchedulerKind = "hybrid"
)

// ProducerKind selects a job source.
type ProducerKind string

const (
	ProducerRandom    ProducerKind = "random"
	ProducerBatchFile ProducerKind = "batch-file"
)

// ConsumerKind selects an execution unit.
type ConsumerKind string

const (
	ConsumerSingle ConsumerKind = "single"
	ConsumerMulti  ConsumerKind = "multi"
)

// DisplayKind selects how progress is rendered.
type DisplayKind string

const (
	DisplayConsole DisplayKind = "console"
	DisplayLogFile DisplayKind = "log-file"
	DisplayNone    DisplayKind = "none"
)

// SchedulerKinds lists every scheduling policy.
func SchedulerKinds() []SchedulerKind {
	return []SchedulerKind{SchedulerFCFS, SchedulerRoundRobin, SchedulerSJN, SchedulerHybrid}
}

// ProducerKinds lists every job source.
func ProducerKinds() []ProducerKind {
	return []ProducerKind{ProducerRandom, ProducerBatchFile}
}

// ConsumerKinds lists every execution unit.
func ConsumerKinds() []ConsumerKind {
	return []ConsumerKind{ConsumerSingle, ConsumerMulti}
}

// DisplayKinds lists every display.
func DisplayKinds() []DisplayKind {
	return []DisplayKind{DisplayConsole, DisplayLogFile, DisplayNone}
}

// Valid reports whether k is a known scheduling policy.
func (k SchedulerKind) Valid() bool { return contains(SchedulerKinds(), k) }

// Valid reports whether k is a known job source.
func (k ProducerKind) Valid() bool { return contains(ProducerKinds(), k) }

// Valid reports whether k is a known execution unit.
func (k ConsumerKind) Valid() bool { return contains(ConsumerKinds(), k) }

// Valid reports whether k is a known display.
func (k DisplayKind) Valid() bool { return contains(DisplayKinds(), k) }

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
