package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/mindcare-directory/internal/adapters/providers/directory"
	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

func testDirectory() *directory.FixtureAdapter {
	second := &entities.ProviderAvailability{
		ProviderID: "prov-2",
		Locations:  []entities.Location{{ID: "C1", DisplayName: "Clínica Norte"}},
		Days: map[string]map[string]entities.DaySlots{
			"C1": {"2024-03-15": {Morning: []string{"08:00"}}},
		},
	}
	return directory.NewFixtureAdapter(directory.Fixtures{
		Providers: []*entities.ProviderAvailability{testAvailability(), second},
		Contacts: map[string]*entities.ContactDetails{
			"prov-1": {ProviderID: "prov-1", Phone: "+52 55 5555 0101"},
		},
	})
}

func TestProviderAvailabilityService_BatchesConcurrentLoads(t *testing.T) {
	source := testDirectory()
	svc := services.NewProviderAvailabilityService(source, nil, 0, 20*time.Millisecond, nil)
	ctx := context.Background()

	first := svc.Prefetch(ctx, "prov-1")
	second := svc.Prefetch(ctx, "prov-2")

	s1, err := first()
	require.NoError(t, err)
	s2, err := second()
	require.NoError(t, err)

	assert.Equal(t, "prov-1", s1.ProviderID())
	assert.Equal(t, "prov-2", s2.ProviderID())
	assert.Equal(t, 1, source.Calls())
}

func TestProviderAvailabilityService_ConcurrentLoad(t *testing.T) {
	source := testDirectory()
	svc := services.NewProviderAvailabilityService(source, nil, 0, 20*time.Millisecond, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := svc.Load(context.Background(), "prov-1")
			assert.NoError(t, err)
			if store != nil {
				assert.True(t, store.HasAvailability("L1", march15))
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, source.Calls(), 5)
}

func TestProviderAvailabilityService_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		svc := services.NewProviderAvailabilityService(testDirectory(), nil, 0, time.Millisecond, nil)
		_, err := svc.Load(ctx, "prov-404")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("empty id", func(t *testing.T) {
		svc := services.NewProviderAvailabilityService(testDirectory(), nil, 0, time.Millisecond, nil)
		_, err := svc.Load(ctx, "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("loader failure", func(t *testing.T) {
		loader := new(MockProviderDataLoader)
		loader.On("LoadAvailability", mock.Anything, []string{"prov-1"}).Return(nil, errors.New("502 bad gateway"))

		svc := services.NewProviderAvailabilityService(loader, nil, 0, time.Millisecond, nil)
		_, err := svc.Load(ctx, "prov-1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
		loader.AssertExpectations(t)
	})

	t.Run("misaligned loader result", func(t *testing.T) {
		loader := new(MockProviderDataLoader)
		loader.On("LoadAvailability", mock.Anything, mock.Anything).Return([]*entities.ProviderAvailability{}, nil)

		svc := services.NewProviderAvailabilityService(loader, nil, 0, time.Millisecond, nil)
		_, err := svc.Load(ctx, "prov-1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})

	t.Run("invalid payload", func(t *testing.T) {
		bad := testAvailability()
		bad.Days["L1"]["2024-03-15"] = entities.DaySlots{Morning: []string{"25:00"}}
		loader := new(MockProviderDataLoader)
		loader.On("LoadAvailability", mock.Anything, mock.Anything).Return([]*entities.ProviderAvailability{bad}, nil)

		svc := services.NewProviderAvailabilityService(loader, nil, 0, time.Millisecond, nil)
		_, err := svc.Load(ctx, "prov-1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})
}

func TestProviderAvailabilityService_Cache(t *testing.T) {
	ctx := context.Background()
	source := testDirectory()
	cache := newMemoryCache()
	svc := services.NewProviderAvailabilityService(source, cache, 60, time.Millisecond, nil)

	_, err := svc.Load(ctx, "prov-1")
	require.NoError(t, err)
	store, err := svc.Load(ctx, "prov-1")
	require.NoError(t, err)

	assert.Equal(t, 1, source.Calls())
	assert.Equal(t, []string{"09:00", "09:30"}, store.SlotsFor("L1", march15, entities.DayBandMorning))

	require.NoError(t, svc.Invalidate(ctx, "prov-1"))
	_, err = svc.Load(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.Calls())

	t.Run("corrupt entry is reloaded", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "provider_availability:prov-2", []byte("{not json"), 60))
		store, err := svc.Load(ctx, "prov-2")
		require.NoError(t, err)
		assert.Equal(t, "prov-2", store.ProviderID())
		assert.Equal(t, 3, source.Calls())
	})
}

func TestProviderAvailabilityService_MonthSummary(t *testing.T) {
	ctx := context.Background()
	svc := services.NewProviderAvailabilityService(testDirectory(), nil, 0, time.Millisecond, nil)
	march := entities.YearMonth{Year: 2024, Month: time.March}

	summary, err := svc.MonthSummary(ctx, "prov-1", "", march)
	require.NoError(t, err)
	assert.Len(t, summary.Locations, 2)
	assert.Equal(t, []entities.CalendarDate{march15, march18}, summary.Dates["L1"])
	assert.Equal(t, []entities.CalendarDate{march15}, summary.Dates["L2"])

	summary, err = svc.MonthSummary(ctx, "prov-1", "L2", march.AddMonths(1))
	require.NoError(t, err)
	assert.Equal(t, []entities.CalendarDate{}, summary.Dates["L2"])
	assert.NotContains(t, summary.Dates, "L1")

	_, err = svc.MonthSummary(ctx, "prov-1", "L9", march)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
