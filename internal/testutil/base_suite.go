package testutil

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/forgia-ai/bank-convert-billing/internal/cache"
	"github.com/forgia-ai/bank-convert-billing/internal/config"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/plan"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// Stores bundles the in-memory repositories a service suite runs against
type Stores struct {
	Subscriptions *InMemorySubscriptionStore
	Usage         *InMemoryUsageStore
}

// BaseServiceSuite wires logger, config, plan registry, cache and in-memory
// stores for service-level tests
type BaseServiceSuite struct {
	suite.Suite
	logger   *logger.Logger
	config   *config.Configuration
	registry *plan.Registry
	cache    cache.Cache
	stores   Stores
}

// TestConfig returns a configuration suitable for tests, with a populated
// plan catalog for both providers
func TestConfig() *config.Configuration {
	return &config.Configuration{
		Deployment: config.DeploymentConfig{Mode: types.RunModeLocal},
		Server:     config.ServerConfig{Address: ":0"},
		Logging:    config.LoggingConfig{Level: types.LogLevelDebug},
		Stripe: config.StripeConfig{
			LitePriceID: "price_lite_test",
			ProPriceID:  "price_pro_test",
		},
		Polar: config.PolarConfig{
			APIBaseURL:    "https://api.polar.test",
			LiteProductID: "prod_lite_test",
			ProProductID:  "prod_pro_test",
		},
		Plans: config.PlansConfig{
			FreePageLimit: 50,
			LitePageLimit: 500,
			ProPageLimit:  1000,
			LitePriceUSD:  "12",
			ProPriceUSD:   "24",
		},
		Cache: config.CacheConfig{Enabled: true},
	}
}

func (s *BaseServiceSuite) SetupSuite() {
	s.config = TestConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	s.Require().NoError(err)

	s.registry, err = plan.NewRegistry(s.config)
	s.Require().NoError(err)
}

func (s *BaseServiceSuite) SetupTest() {
	s.cache = cache.NewInMemoryCache(s.config)
	s.stores = Stores{
		Subscriptions: NewInMemorySubscriptionStore(),
		Usage:         NewInMemoryUsageStore(),
	}
}

func (s *BaseServiceSuite) TearDownTest() {
	s.stores.Subscriptions.Clear()
	s.stores.Usage.Clear()
	s.cache.Flush(context.Background())
}

func (s *BaseServiceSuite) GetLogger() *logger.Logger        { return s.logger }
func (s *BaseServiceSuite) GetConfig() *config.Configuration { return s.config }
func (s *BaseServiceSuite) GetRegistry() *plan.Registry      { return s.registry }
func (s *BaseServiceSuite) GetCache() cache.Cache            { return s.cache }
func (s *BaseServiceSuite) GetStores() Stores                { return s.stores }
