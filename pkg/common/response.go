package common

import (
	"net/http"
	"sync"
)

// Response is the write side of the Context. Header and status writes land in
// the underlying http.ResponseWriter's header table, so Context.Set and
// Response.Set always observe the same values.
//
// Once the server shell has committed the response, further header and status
// writes are dropped and reads are served from a copy of the header table taken
// at commit time. The live table then belongs to the shell.
type Response struct {
	ctx *Context
	Res http.ResponseWriter

	mu        sync.Mutex
	status    int
	committed bool
	sent      http.Header
}

// Ctx returns the Context owning this facade.
func (r *Response) Ctx() *Context {
	return r.ctx
}

// Header returns the response header table. Writes made directly on the
// returned map bypass the commit guard. After commit it returns a detached
// copy, and writes to it never reach the client.
func (r *Response) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return r.sent.Clone()
	}
	return r.Res.Header()
}

// Set sets a response header, replacing any existing values.
func (r *Response) Set(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return
	}
	r.Res.Header().Set(name, value)
}

// Get returns a response header, looked up case-insensitively.
func (r *Response) Get(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return r.sent.Get(name)
	}
	return r.Res.Header().Get(name)
}

// Del removes a response header.
func (r *Response) Del(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return
	}
	r.Res.Header().Del(name)
}

// Status returns the status that will be sent, 200 if none was set.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// SetStatus sets the status code to send.
func (r *Response) SetStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return
	}
	r.status = code
}

// Commit marks the response as sent. It reports false if it was already committed,
// in which case the caller must not write to Res.
func (r *Response) Commit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return false
	}
	r.committed = true
	r.sent = r.Res.Header().Clone()
	return true
}

// Committed reports whether the response was already committed.
func (r *Response) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}
