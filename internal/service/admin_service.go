package service

import (
	"context"

	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// AdminService handles admin business logic.
type AdminService struct {
	adminRepo *repository.AdminRepository
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo *repository.AdminRepository) *AdminService {
	return &AdminService{adminRepo: adminRepo}
}

// GetByEmail retrieves an admin by email.
func (s *AdminService) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	return s.adminRepo.GetByEmail(ctx, email)
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	return s.adminRepo.GetByID(ctx, id)
}

// Create creates a new admin. Unknown permission codes are dropped; an empty
// list grants every permission.
func (s *AdminService) Create(ctx context.Context, admin *model.Admin) error {
	admin.Permissions = FilterPermissions(admin.Permissions)
	if len(admin.Permissions) == 0 {
		admin.Permissions = model.PermissionStrings()
	}
	return s.adminRepo.Create(ctx, admin)
}

// GrantAllPermissions gives the admin with email every known permission,
// including ones added after the account was created.
func (s *AdminService) GrantAllPermissions(ctx context.Context, email string) (*model.Admin, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	admin.Permissions = model.PermissionStrings()
	if err := s.adminRepo.SetPermissions(ctx, admin.ID, admin.Permissions); err != nil {
		return nil, err
	}
	return admin, nil
}

// FilterPermissions keeps only known permission codes, without duplicates.
func FilterPermissions(in []string) []string {
	known := make(map[string]bool, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		known[string(p)] = true
	}
	out := []string{}
	for _, p := range in {
		if known[p] {
			out = append(out, p)
			known[p] = false
		}
	}
	return out
}
