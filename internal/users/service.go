package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

// Contact is the addressing detail needed to email a user.
type Contact struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Directory resolves buyer and seller profiles for the fulfilment flow.
type Directory struct {
	repo *Repository
}

// NewDirectory wires the profile directory.
func NewDirectory(repo *Repository) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	return &Directory{repo: repo}, nil
}

// Contact returns the email contact of a user.
func (d *Directory) Contact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	profile, err := d.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return contactFrom(profile), nil
}

// ShippingOrigin returns the seller's postal address, or a validation error
// naming the missing fields so the seller can complete their profile.
func (d *Directory) ShippingOrigin(ctx context.Context, sellerID uuid.UUID) (types.PostalAddress, error) {
	profile, err := d.load(ctx, sellerID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return types.PostalAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "seller address missing, add a postal address to your profile").
				WithDetails(map[string]any{"missing_fields": types.PostalAddress{}.MissingFields()})
		}
		return types.PostalAddress{}, err
	}
	address := profile.Address.Normalize()
	if address.Name == "" {
		address.Name = profile.FullName
	}
	if missing := address.MissingFields(); len(missing) > 0 {
		return types.PostalAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "seller address incomplete, update your profile").
			WithDetails(map[string]any{"missing_fields": missing})
	}
	return address, nil
}

// BackfillAddress stores the address captured at payment on the buyer's profile.
func (d *Directory) BackfillAddress(ctx context.Context, userID uuid.UUID, address types.PostalAddress) error {
	if !address.IsComplete() {
		return nil
	}
	updated, err := d.repo.UpdateAddress(ctx, userID, address.Normalize())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile address")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return nil
}

func (d *Directory) load(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := d.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}

func contactFrom(p *models.Profile) *Contact {
	name := p.FullName
	if name == "" {
		name = p.Address.Name
	}
	return &Contact{UserID: p.ID, Email: p.Email, Name: name}
}
