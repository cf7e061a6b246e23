package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/postgres/testhelpers"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/suite"
)

type CookieRepositoryTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	repo   *postgres.CookieRepository
}

func TestCookieRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	suite.Run(t, new(CookieRepositoryTestSuite))
}

func (s *CookieRepositoryTestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.repo = postgres.NewCookieRepository(s.testDB.DB)
}

func (s *CookieRepositoryTestSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *CookieRepositoryTestSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
}

func (s *CookieRepositoryTestSuite) TestContract() {
	storetest.RunCookieStore(s.T(), func(t *testing.T) application.CookieStore {
		s.testDB.CleanTables(t)
		return s.repo
	})
}

func (s *CookieRepositoryTestSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(s.testDB.DB.Migrate(context.Background()))
}

func (s *CookieRepositoryTestSuite) TestConcurrentWritersLastWriteWins() {
	ctx := context.Background()
	name := domain.IdentityCookieName("ORG@AdobeOrg")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			s.NoError(s.repo.Set(ctx, domain.Cookie{Name: name, Value: fmt.Sprintf("v%d", i)}))
		})
	}
	wg.Wait()

	all, err := s.repo.All(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
	s.Contains(all, name)
}
