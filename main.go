// package main provides the entry point for the orggatekeeper microservice:
// it wires the registry clients, the classification core, the Kafka event
// processor and the HTTP control surface together.
package main

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/os2mo/orggatekeeper/calculate"
	"github.com/os2mo/orggatekeeper/internal/api"
	"github.com/os2mo/orggatekeeper/internal/config"
	"github.com/os2mo/orggatekeeper/internal/kafka"
	"github.com/os2mo/orggatekeeper/internal/logging"
	"github.com/os2mo/orggatekeeper/internal/metrics"
	"github.com/os2mo/orggatekeeper/mo"
	"github.com/os2mo/orggatekeeper/model"
	"github.com/os2mo/orggatekeeper/restapi"
	"github.com/os2mo/orggatekeeper/restapi/modules/health"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	logger := logging.New(settings.LogLevel)
	defer logger.Sync() //nolint:errcheck

	metrics.SetBuildInformation(settings.CommitTag, settings.CommitSHA)

	// Registry clients
	httpClient := mo.NewHTTPClient(settings.GraphQLTimeout, settings.MOToken)
	gqlClient := mo.NewGraphQLClient(settings.MOURL, httpClient)
	modelClient := mo.NewModelClient(settings.MOURL, httpClient, logger)

	classes := map[model.Category]mo.ClassConfig{
		model.CategoryHidden:         {UUID: settings.HiddenUUID, UserKey: settings.HiddenUserKey},
		model.CategoryLineManagement: {UUID: settings.LineManagementUUID, UserKey: settings.LineManagementUserKey},
		model.CategorySelfOwned:      {UUID: settings.SelfOwnedUUID, UserKey: settings.SelfOwnedUserKey},
		model.CategoryNA:             {UUID: settings.NAUUID, UserKey: settings.NAUserKey},
	}
	facade := mo.NewFacade(gqlClient, modelClient, classes, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//
	// Registry connection with backoff retry
	//

	var orgUUID uuid.UUID
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	err = backoff.RetryNotify(func() error {
		var err error
		orgUUID, err = facade.FetchOrgUUID(ctx)
		return err
	}, bo, func(err error, _ time.Duration) {
		logger.Warn("Retrying connection to registry", zap.Error(err))
	})
	if err != nil {
		logger.Fatal("Failed to fetch organisation uuid", zap.Error(err))
	}
	logger.Info("Connected to registry", zap.String("org_uuid", orgUUID.String()))

	// Classification core
	engine := calculate.NewEngine(facade, settings, logger)
	updater := calculate.NewUpdater(facade, engine, settings, orgUUID, logger)
	coordinator := calculate.NewCoordinator(facade, updater, settings.ParallelUpdates, logger)

	// Event processor
	if err := kafka.RunEventProcessor(ctx, settings, coordinator, logger); err != nil {
		logger.Fatal("Failed to start event processor", zap.Error(err))
	}

	// Control surface
	checks := map[string]health.Check{
		"GraphQL":     facade.HealthGraphQL,
		"Service API": facade.HealthModelClient,
		"Kafka": func(ctx context.Context) bool {
			return kafka.CheckBroker(ctx, settings.KafkaBrokers)
		},
	}

	app := api.NewFiberApp(restapi.Deps{
		Coordinator:   coordinator,
		Checks:        checks,
		Log:           logger,
		ExposeMetrics: settings.ExposeMetrics,
	})

	logger.Info("Starting server", zap.String("port", settings.Port))
	if err := app.Listen(":" + settings.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
