package seed

import (
    "context"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/utils"
)

const citiesCSV = `province,city,lat,lng
Aceh, Banda Aceh, 5.5483, 95.3238
Aceh, Lhokseumawe,,
Bali, Denpasar, -8.6705, 115.2126
`

func TestParseCities(t *testing.T) {
    rows, err := ParseCities(strings.NewReader(citiesCSV))
    require.NoError(t, err)
    require.Len(t, rows, 3)
    assert.Equal(t, "Banda Aceh", rows[0].City)
    require.NotNil(t, rows[0].Lat)
    assert.InDelta(t, 5.5483, *rows[0].Lat, 1e-9)
    assert.Nil(t, rows[1].Lat)
    assert.Equal(t, "Bali", rows[2].Province)
}

func TestParseCitiesRejectsBadRows(t *testing.T) {
    _, err := ParseCities(strings.NewReader("Aceh,\n"))
    assert.ErrorContains(t, err, "line 1")

    _, err = ParseCities(strings.NewReader("Aceh,Banda Aceh,95.3,5.5\n"))
    assert.ErrorContains(t, err, "invalid coordinates")
}

type fakeReference struct {
    provinces map[string]uint64
    cities    []model.City
}

func (f *fakeReference) UpsertProvince(_ context.Context, name string) (uint64, error) {
    if id, ok := f.provinces[name]; ok {
        return id, nil
    }
    id := uint64(len(f.provinces) + 1)
    f.provinces[name] = id
    return id, nil
}

func (f *fakeReference) UpsertCity(_ context.Context, c model.City) (uint64, error) {
    f.cities = append(f.cities, c)
    return uint64(len(f.cities)), nil
}

func TestLoadReference(t *testing.T) {
    rows, err := ParseCities(strings.NewReader(citiesCSV))
    require.NoError(t, err)
    w := &fakeReference{provinces: map[string]uint64{}}

    p, c, err := LoadReference(context.Background(), w, rows)
    require.NoError(t, err)
    assert.Equal(t, 2, p)
    assert.Equal(t, 3, c)
    assert.Equal(t, w.provinces["Aceh"], w.cities[1].ProvinceID)
    assert.Equal(t, w.provinces["Bali"], w.cities[2].ProvinceID)
}

type fakeAccounts struct{ created []model.AdminIdentity }

func (f *fakeAccounts) EmailExists(_ context.Context, email string) (bool, error) {
    for _, a := range f.created {
        if a.Email == email {
            return true, nil
        }
    }
    return false, nil
}

func (f *fakeAccounts) Create(_ context.Context, a *model.AdminIdentity) error {
    a.ID = uint64(len(f.created) + 1)
    f.created = append(f.created, *a)
    return nil
}

func TestSuperAdminIsCreatedOnce(t *testing.T) {
    accounts := &fakeAccounts{}
    s := AdminSeed{Email: " Root@Relief.test ", Username: "root", Password: "correct horse battery"}

    created, err := SuperAdmin(context.Background(), accounts, s, bcrypt.MinCost)
    require.NoError(t, err)
    assert.True(t, created)
    require.Len(t, accounts.created, 1)
    a := accounts.created[0]
    assert.Equal(t, "root@relief.test", a.Email)
    assert.Equal(t, model.RoleSuperAdmin, a.Role)
    assert.Nil(t, a.ProvinceID)
    assert.True(t, utils.VerifyPassword(a.PasswordHash, "correct horse battery"))

    created, err = SuperAdmin(context.Background(), accounts, s, bcrypt.MinCost)
    require.NoError(t, err)
    assert.False(t, created)
}

func TestSuperAdminValidates(t *testing.T) {
    _, err := SuperAdmin(context.Background(), &fakeAccounts{}, AdminSeed{Email: "a@b.c", Username: "a", Password: "short"}, bcrypt.MinCost)
    assert.ErrorIs(t, err, model.ErrValidationFailed)
}
