package auth

import (
	"sync"

	"github.com/google/uuid"
)

// Challenge is a login waiting for its verification code
type Challenge struct {
	ID   string
	DNI  string
	Code string
}

// Challenges holds pending verification codes in memory. A user has at
// most one pending challenge; issuing a new one replaces the old.
type Challenges struct {
	mu    sync.Mutex
	byID  map[string]Challenge
	byDNI map[string]string
}

func NewChallenges() *Challenges {
	return &Challenges{
		byID:  make(map[string]Challenge),
		byDNI: make(map[string]string),
	}
}

// Issue records code for dni and returns the challenge
func (c *Challenges) Issue(dni, code string) Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byDNI[dni]; ok {
		delete(c.byID, old)
	}
	ch := Challenge{ID: uuid.NewString(), DNI: dni, Code: code}
	c.byID[ch.ID] = ch
	c.byDNI[dni] = ch.ID
	return ch
}

// Verify checks code against the challenge. On a match the challenge is
// consumed and returned. A wrong code leaves it pending.
func (c *Challenges) Verify(id, code string) (Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.byID[id]
	if !ok || !VerifyCode(code, ch.Code) {
		return Challenge{}, false
	}
	delete(c.byID, id)
	delete(c.byDNI, ch.DNI)
	return ch, true
}

// Pending reports whether id is an outstanding challenge
func (c *Challenges) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of outstanding challenges
func (c *Challenges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
