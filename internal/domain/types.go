package domain

import "time"

// Instrument is one catalogue record in the "store" collection.
type Instrument struct {
	ID        string
	Name      string
	Price     string
	Desc      string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstrumentFields is the editable part of an Instrument.
type InstrumentFields struct {
	Name  string
	Price string
	Desc  string
	Image string
}

// Fields returns the editable fields of i.
func (i *Instrument) Fields() InstrumentFields {
	return InstrumentFields{Name: i.Name, Price: i.Price, Desc: i.Desc, Image: i.Image}
}

// Contact is a contact-form submission. UserID is empty for anonymous visitors.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Message   string
	UserID    string
	CreatedAt time.Time
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type PasswordReset struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
