package state

// Enqueue appends alert texts to the tail of the queue, in order.
func (s *MonitorState) Enqueue(texts ...string) {
	s.PendingAlerts = append(s.PendingAlerts, texts...)
}

// Head returns the oldest pending alert without removing it.
func (s *MonitorState) Head() (string, bool) {
	if len(s.PendingAlerts) == 0 {
		return "", false
	}
	return s.PendingAlerts[0], true
}

// PopHead removes the oldest pending alert. It returns false if the queue
// was empty.
func (s *MonitorState) PopHead() (string, bool) {
	text, ok := s.Head()
	if !ok {
		return "", false
	}
	s.PendingAlerts[0] = "" // release the string
	s.PendingAlerts = s.PendingAlerts[1:]
	if len(s.PendingAlerts) == 0 {
		s.PendingAlerts = nil
	}
	return text, true
}

// QueueLen returns the number of pending alerts
func (s *MonitorState) QueueLen() int {
	return len(s.PendingAlerts)
}
