package nosqlbench

// RequestOp issues one request of a given type through the driver.
type RequestOp func(db Driver, key Key) error

var (
	// RequestOps maps every request type to the driver call it issues.
	RequestOps = map[RequestType]RequestOp{
		RequestReplace: Driver.Replace,
		RequestUpdate:  Driver.Update,
		RequestDelete:  Driver.Delete,
		RequestSelect:  Driver.Select,
		RequestInsert:  Driver.Insert,
	}
)

// RequestSlot tracks one request type of a Workload.
type RequestSlot struct {
	Type      RequestType
	Percent   int
	Target    int
	Requested int
	Op        RequestOp

	next int
	prev int
}

// Exhausted reports whether the slot issued all its requests for this pass.
func (self *RequestSlot) Exhausted() bool {
	return self.Requested >= self.Target
}

// Workload turns the configured request percentages into a sequence of
// request types. The slots with something left to issue form a ring in
// declaration order, Fetch walks it and drops a slot as soon as it is
// exhausted. A Workload belongs to a single worker.
type Workload struct {
	total     int
	requested int
	slots     [RequestTypeCount]RequestSlot
	// bit i is set while slot i is in the ring
	active  uint8
	head    int
	current int
}

func NewWorkload(total int) *Workload {
	object := &Workload{}
	object.Configure(total)
	return object
}

// Configure sets the number of requests in one pass and drops all slots.
func (self *Workload) Configure(total int) {
	self.total = total
	self.requested = 0
	for i := range self.slots {
		self.slots[i] = RequestSlot{
			Type: RequestType(i),
			next: -1,
			prev: -1,
		}
	}
	self.active = 0
	self.head = -1
	self.current = -1
}

// Add configures the slot of t to issue percent percent of the total
// requests through op. Whether the percentages sum to 100 is left to the
// caller.
func (self *Workload) Add(t RequestType, op RequestOp, percent int) {
	if int(t) >= RequestTypeCount {
		return
	}
	s := &self.slots[t]
	s.Percent = percent
	s.Target = int(float64(self.total) * float64(percent) / 100.0)
	s.Requested = 0
	s.Op = op
}

// Reset starts a new pass: all counters are zeroed and every slot with a
// positive target rejoins the ring.
func (self *Workload) Reset() {
	self.requested = 0
	self.active = 0
	self.head = -1
	self.current = -1
	last := -1
	for i := range self.slots {
		s := &self.slots[i]
		s.Requested = 0
		s.next = -1
		s.prev = -1
		if s.Target <= 0 {
			continue
		}
		self.active |= 1 << uint(i)
		if last < 0 {
			self.head = i
		} else {
			self.slots[last].next = i
			s.prev = last
		}
		last = i
	}
	if self.head >= 0 {
		// close the ring
		self.slots[last].next = self.head
		self.slots[self.head].prev = last
	}
}

func (self *Workload) unlink(i int) {
	s := &self.slots[i]
	self.active &^= 1 << uint(i)
	if s.next == i {
		self.head = -1
	} else {
		self.slots[s.prev].next = s.next
		self.slots[s.next].prev = s.prev
		if self.head == i {
			self.head = s.next
		}
	}
	s.next = -1
	s.prev = -1
}

// Fetch returns the slot to issue the next request from, or nil once every
// slot is exhausted and the pass is complete.
func (self *Workload) Fetch() *RequestSlot {
	if self.head < 0 {
		self.current = -1
		return nil
	}
	if self.current < 0 {
		self.current = self.head
		return &self.slots[self.current]
	}
	c := &self.slots[self.current]
	next := c.next
	if c.Exhausted() {
		self.unlink(self.current)
		if self.head < 0 {
			self.current = -1
			return nil
		}
	}
	self.current = next
	return &self.slots[self.current]
}

// Account records that a request of slot was issued.
func (self *Workload) Account(slot *RequestSlot) {
	slot.Requested++
	self.requested++
}

// AccountExtra records a request issued outside the rotation, such as the
// reinsert that follows a delete.
func (self *Workload) AccountExtra() {
	self.requested++
}

// Clone returns an independent copy of the configuration, ready for a
// fresh pass.
func (self *Workload) Clone() *Workload {
	object := NewWorkload(self.total)
	for i := range self.slots {
		s := &self.slots[i]
		object.slots[i].Percent = s.Percent
		object.slots[i].Target = s.Target
		object.slots[i].Op = s.Op
	}
	object.Reset()
	return object
}

// Total returns the number of requests in one pass.
func (self *Workload) Total() int {
	return self.total
}

// Requested returns the number of requests issued in the current pass.
func (self *Workload) Requested() int {
	return self.requested
}

// Slot returns the slot of t.
func (self *Workload) Slot(t RequestType) *RequestSlot {
	return &self.slots[t]
}

// Active reports whether the slot of t is still in the ring.
func (self *Workload) Active(t RequestType) bool {
	return self.active&(1<<uint(t)) != 0
}

// TargetSum returns the sum of all slot targets.
func (self *Workload) TargetSum() int {
	sum := 0
	for i := range self.slots {
		sum += self.slots[i].Target
	}
	return sum
}

// NewWorkloadFromOptions builds the master workload every worker clones.
func NewWorkloadFromOptions(opts *Options) *Workload {
	w := NewWorkload(opts.RequestCount)
	w.Add(RequestReplace, RequestOps[RequestReplace], opts.ReplacePercent)
	w.Add(RequestUpdate, RequestOps[RequestUpdate], opts.UpdatePercent)
	w.Add(RequestDelete, RequestOps[RequestDelete], opts.DeletePercent)
	w.Add(RequestSelect, RequestOps[RequestSelect], opts.SelectPercent)
	w.Reset()
	return w
}
