package repository_test

import (
	"context"
	"testing"
	"time"

	"delivery-dispatch/internal/database"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/registry"
	"delivery-dispatch/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	restaurant_lat DOUBLE PRECISION,
	restaurant_lon DOUBLE PRECISION,
	courier_id TEXT,
	status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS couriers (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'offline',
	current_lat DOUBLE PRECISION,
	current_lon DOUBLE PRECISION,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	read_at TIMESTAMPTZ
);
`

// RepositoryIntegrationTestSuite проверяет репозитории на настоящем PostgreSQL
type RepositoryIntegrationTestSuite struct {
	suite.Suite
	container     *postgres.PostgresContainer
	db            *database.DB
	orders        *repository.OrderRepository
	couriers      *repository.CourierRepository
	notifications *repository.NotificationRepository
}

func (suite *RepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	log := logger.Discard()
	db, err := database.ConnectDSN(connStr, 5, 2, log)
	suite.Require().NoError(err)
	suite.db = db

	_, err = db.ExecContext(ctx, schema)
	suite.Require().NoError(err)

	suite.orders = repository.NewOrderRepository(db, log)
	suite.couriers = repository.NewCourierRepository(db, log)
	suite.notifications = repository.NewNotificationRepository(db, log)
}

func (suite *RepositoryIntegrationTestSuite) SetupTest() {
	_, err := suite.db.Exec("TRUNCATE TABLE orders, couriers, notifications")
	suite.Require().NoError(err)
}

func (suite *RepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.db != nil {
		suite.db.Close()
	}
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *RepositoryIntegrationTestSuite) insertOrder(id string, lat, lon interface{}, createdAt time.Time) {
	_, err := suite.db.Exec(
		`INSERT INTO orders (id, customer_id, restaurant_lat, restaurant_lon, created_at, updated_at) VALUES ($1, 'cust', $2, $3, $4, $4)`,
		id, lat, lon, createdAt,
	)
	suite.Require().NoError(err)
}

func (suite *RepositoryIntegrationTestSuite) TestOrders_RestaurantLocation() {
	ctx := context.Background()
	suite.insertOrder("o-1", 10.7769, 106.7009, time.Now())
	suite.insertOrder("o-2", nil, nil, time.Now())

	loc, err := suite.orders.GetRestaurantLocation(ctx, "o-1")
	suite.Require().NoError(err)
	suite.Require().NotNil(loc)
	suite.InDelta(10.7769, loc.Latitude, 1e-9)
	suite.InDelta(106.7009, loc.Longitude, 1e-9)

	loc, err = suite.orders.GetRestaurantLocation(ctx, "o-2")
	suite.Require().NoError(err)
	suite.Nil(loc)

	_, err = suite.orders.GetRestaurantLocation(ctx, "missing")
	suite.True(errs.IsNotFound(err))
}

func (suite *RepositoryIntegrationTestSuite) TestOrders_AssignAndStatus() {
	ctx := context.Background()
	suite.insertOrder("o-1", 10.0, 106.0, time.Now())

	suite.Require().NoError(suite.orders.SetAssignedCourier(ctx, "o-1", "c-1"))
	suite.Require().NoError(suite.orders.SetStatus(ctx, "o-1", models.OrderStatusPickingUp))

	var courierID, status string
	err := suite.db.QueryRow(`SELECT courier_id, status FROM orders WHERE id = 'o-1'`).Scan(&courierID, &status)
	suite.Require().NoError(err)
	suite.Equal("c-1", courierID)
	suite.Equal(string(models.OrderStatusPickingUp), status)

	suite.True(errs.IsNotFound(suite.orders.SetStatus(ctx, "missing", models.OrderStatusDelivered)))
	suite.True(errs.IsNotFound(suite.orders.SetAssignedCourier(ctx, "missing", "c-1")))
}

func (suite *RepositoryIntegrationTestSuite) TestOrders_ListUnassigned() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	suite.insertOrder("newer", 10.0, 106.0, base.Add(2*time.Minute))
	suite.insertOrder("older", 10.0, 106.0, base)
	suite.insertOrder("taken", 10.0, 106.0, base.Add(time.Minute))
	suite.insertOrder("done", 10.0, 106.0, base.Add(time.Minute))
	suite.Require().NoError(suite.orders.SetAssignedCourier(ctx, "taken", "c-1"))
	suite.Require().NoError(suite.orders.SetStatus(ctx, "done", models.OrderStatusCancelled))

	orders, err := suite.orders.ListUnassigned(ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 2)
	suite.Equal("older", orders[0].ID)
	suite.Equal("newer", orders[1].ID)
	suite.NotNil(orders[0].RestaurantLocation)

	orders, err = suite.orders.ListUnassigned(ctx, 1)
	suite.Require().NoError(err)
	suite.Len(orders, 1)
}

func (suite *RepositoryIntegrationTestSuite) TestCouriers_SaveAndWarmUp() {
	ctx := context.Background()

	suite.Require().NoError(suite.couriers.SaveState(ctx, models.Courier{
		ID:           "c-1",
		Availability: models.CourierAvailable,
		Location:     &models.Coordinate{Latitude: 10.7626, Longitude: 106.6601},
	}))
	suite.Require().NoError(suite.couriers.SaveState(ctx, models.Courier{
		ID:           "c-2",
		Availability: models.CourierOffline,
	}))
	suite.Require().NoError(suite.couriers.SaveState(ctx, models.Courier{
		ID:           "c-3",
		Availability: models.CourierAvailable,
	}))
	suite.Require().NoError(suite.couriers.Deactivate(ctx, "c-3"))

	// статус обновляется, координаты без значения сохраняются прежними
	suite.Require().NoError(suite.couriers.SaveState(ctx, models.Courier{
		ID:           "c-1",
		Availability: models.CourierBusy,
	}))

	reg := registry.New()
	loaded, err := suite.couriers.WarmUp(ctx, reg)
	suite.Require().NoError(err)
	suite.Equal(2, loaded)
	suite.Equal(2, reg.Len())

	c1, ok := reg.Get("c-1")
	suite.Require().True(ok)
	suite.Equal(models.CourierBusy, c1.Availability)
	suite.Require().NotNil(c1.Location)
	suite.InDelta(10.7626, c1.Location.Latitude, 1e-9)

	_, ok = reg.Get("c-3")
	suite.False(ok)
}

func (suite *RepositoryIntegrationTestSuite) TestCouriers_WarmUpSkipsInvalidRows() {
	ctx := context.Background()
	_, err := suite.db.Exec(`INSERT INTO couriers (id, status) VALUES ('bad', 'sleeping'), ('good', 'available')`)
	suite.Require().NoError(err)

	reg := registry.New()
	loaded, err := suite.couriers.WarmUp(ctx, reg)
	suite.Require().NoError(err)
	suite.Equal(1, loaded)

	_, ok := reg.Get("good")
	suite.True(ok)
}

func (suite *RepositoryIntegrationTestSuite) TestNotifications_Lifecycle() {
	ctx := context.Background()

	first, err := suite.notifications.Record(ctx, "u-1", models.NotificationTypeNewOrder, "New order", "Order 1 assigned",
		map[string]interface{}{"orderId": "1"})
	suite.Require().NoError(err)
	suite.NotEqual(uuid.Nil, first.ID)
	suite.Nil(first.ReadAt)

	second, err := suite.notifications.Record(ctx, "u-1", models.OrderNotificationType(models.OrderStatusDelivered), "Delivered", "Order 1 delivered", nil)
	suite.Require().NoError(err)

	_, err = suite.notifications.Record(ctx, "u-2", models.NotificationTypeNewOrder, "Other", "Other user", nil)
	suite.Require().NoError(err)

	unread, err := suite.notifications.ListUnread(ctx, "u-1", 10)
	suite.Require().NoError(err)
	suite.Require().Len(unread, 2)
	suite.Equal(second.ID, unread[0].ID)
	suite.Equal("1", unread[1].Data["orderId"])

	suite.True(errs.IsNotFound(suite.notifications.MarkAsRead(ctx, first.ID, "u-2")))
	suite.Require().NoError(suite.notifications.MarkAsRead(ctx, first.ID, "u-1"))
	suite.True(errs.IsNotFound(suite.notifications.MarkAsRead(ctx, first.ID, "u-1")))

	unread, err = suite.notifications.ListUnread(ctx, "u-1", 10)
	suite.Require().NoError(err)
	suite.Require().Len(unread, 1)
	suite.Equal(second.ID, unread[0].ID)
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}
