// Package seed provisions reference data and the first super admin.
package seed

import (
    "context"
    "encoding/csv"
    "errors"
    "fmt"
    "io"
    "strconv"
    "strings"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/utils"
)

// CityRow is one line of the cities CSV: province,city[,lat,lng].
type CityRow struct {
    Province string
    City     string
    Lat      *float64
    Lng      *float64
}

// ParseCities reads the CSV.  A header row starting with "province" is
// skipped and coordinates are optional but must come in pairs.
func ParseCities(r io.Reader) ([]CityRow, error) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = -1
    cr.TrimLeadingSpace = true

    var rows []CityRow
    for line := 1; ; line++ {
        rec, err := cr.Read()
        if errors.Is(err, io.EOF) {
            return rows, nil
        }
        if err != nil {
            return nil, err
        }
        if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "province") {
            continue
        }
        if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" || strings.TrimSpace(rec[1]) == "" {
            return nil, fmt.Errorf("line %d: province and city are required", line)
        }
        row := CityRow{Province: strings.TrimSpace(rec[0]), City: strings.TrimSpace(rec[1])}
        if len(rec) >= 4 && strings.TrimSpace(rec[2]) != "" {
            lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
            lng, err2 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
            if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
                return nil, fmt.Errorf("line %d: invalid coordinates", line)
            }
            row.Lat, row.Lng = &lat, &lng
        }
        rows = append(rows, row)
    }
}

// ReferenceWriter upserts provinces and cities.
type ReferenceWriter interface {
    UpsertProvince(ctx context.Context, name string) (uint64, error)
    UpsertCity(ctx context.Context, c model.City) (uint64, error)
}

// LoadReference upserts every row and returns the number of distinct
// provinces and cities written.  Running it twice is harmless.
func LoadReference(ctx context.Context, w ReferenceWriter, rows []CityRow) (provinces, cities int, err error) {
    ids := map[string]uint64{}
    for _, r := range rows {
        pid, ok := ids[r.Province]
        if !ok {
            if pid, err = w.UpsertProvince(ctx, r.Province); err != nil {
                return provinces, cities, fmt.Errorf("province %q: %w", r.Province, err)
            }
            ids[r.Province] = pid
            provinces++
        }
        if _, err = w.UpsertCity(ctx, model.City{ProvinceID: pid, Name: r.City, Lat: r.Lat, Lng: r.Lng}); err != nil {
            return provinces, cities, fmt.Errorf("city %q: %w", r.City, err)
        }
        cities++
    }
    return provinces, cities, nil
}

// AdminSeed is the first super admin, read from SEED_ADMIN_* variables.
type AdminSeed struct {
    Name     string
    Email    string
    Username string
    Password string
}

// AccountCreator is the part of the credential store the seeder needs.
type AccountCreator interface {
    EmailExists(ctx context.Context, email string) (bool, error)
    Create(ctx context.Context, a *model.AdminIdentity) error
}

// MinAdminPassword is the shortest seeded password accepted.
const MinAdminPassword = 12

// SuperAdmin creates the account unless its email is already registered.
// It reports whether an account was created.
func SuperAdmin(ctx context.Context, accounts AccountCreator, s AdminSeed, bcryptCost int) (bool, error) {
    s.Email = strings.ToLower(strings.TrimSpace(s.Email))
    if s.Email == "" || strings.TrimSpace(s.Username) == "" {
        return false, model.Invalid("SEED_ADMIN_EMAIL/SEED_ADMIN_USERNAME", "are required")
    }
    if len(s.Password) < MinAdminPassword {
        return false, model.Invalid("SEED_ADMIN_PASSWORD", fmt.Sprintf("must be at least %d characters", MinAdminPassword))
    }
    exists, err := accounts.EmailExists(ctx, s.Email)
    if err != nil || exists {
        return false, err
    }
    hash, err := utils.HashPassword(s.Password, bcryptCost)
    if err != nil {
        return false, err
    }
    name := strings.TrimSpace(s.Name)
    if name == "" {
        name = s.Username
    }
    a := &model.AdminIdentity{
        Name:         name,
        Email:        s.Email,
        Username:     strings.TrimSpace(s.Username),
        PasswordHash: hash,
        Role:         model.RoleSuperAdmin,
        IsActive:     true,
    }
    if err := accounts.Create(ctx, a); err != nil {
        return false, err
    }
    return true, nil
}
