package model

// Key methods let generic collection helpers address rows by id.

func (i Item) Key() int64                 { return i.ID }
func (a Assignment) Key() int64           { return a.ID }
func (l Loan) Key() int64                 { return l.ID }
func (t PendingTask) Key() int64          { return t.ID }
func (r PendingActionRequest) Key() int64 { return r.ID }
func (r AccessRequest) Key() int64        { return r.ID }
func (u User) Key() int64                 { return u.ID }
func (a CustomAttribute) Key() int64      { return a.ID }
