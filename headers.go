package smtpdata

// AddHeader appends a header field at the end of the header block.
func (t *Transaction) AddHeader(key, value string) {
	t.header.Add(key, value)
	t.syncHeaderBoundary()
}

// AddLeadingHeader prepends a header field at the start of the header block.
func (t *Transaction) AddLeadingHeader(key, value string) {
	t.header.AddLeading(key, value)
	t.syncHeaderBoundary()
}

// RemoveHeader removes all header fields with the given key.
func (t *Transaction) RemoveHeader(key string) {
	t.header.Remove(key)
	t.syncHeaderBoundary()
}

// ResetHeaders re-derives the stored header lines and the boundary position
// from the header store. Callers that mutate the store directly through
// [Transaction.Header] use it to keep the boundary bookkeeping correct.
func (t *Transaction) ResetHeaders() {
	t.headerLines = t.header.Lines()
	t.headerBoundary = len(t.headerLines)
}

// syncHeaderBoundary keeps the boundary position equal to the serialized
// line count of the header store across mutations. Before the boundary is
// found there is nothing to keep in sync.
func (t *Transaction) syncHeaderBoundary() {
	if t.boundaryFound {
		t.ResetHeaders()
	}
}
