package models_test

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
)

// Concurrent allocation against a real MySQL: row locks on the counters must
// serialize each scope across connections.
func TestGenerateLetterNumber_MySQLConcurrentScopes(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "letters_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	t.Cleanup(func() {
		config.SetRedisDB(nil)
		config.SetDB(nil)
	})
	models.MigrateTable()

	ctx := testContext()
	mustCategory(t, ctx, "B", "Biasa")
	mustDivision(t, ctx, "TU.040", "Tata Usaha")
	mustDivision(t, ctx, "KEU.01", "Keuangan")

	divisions := []string{"TU.040", "KEU.01"}
	// first letter per scope creates its counter row
	for _, d := range divisions {
		mustGenerate(t, ctx, "B", d, "2025-07-15")
	}

	const perScope = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		dailies = map[string][]int{}
		globals = map[int64]bool{}
		errs    []error
	)
	for _, d := range divisions {
		for i := 0; i < perScope; i++ {
			wg.Add(1)
			go func(division string) {
				defer wg.Done()
				issued, err := models.GenerateLetterNumber(ctx, &models.NewLetterNumber{
					CategoryCode: "B",
					DivisionCode: division,
					IssueDate:    "2025-07-15",
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				dailies[division] = append(dailies[division], issued.DailySerial)
				globals[issued.GlobalSerial] = true
			}(d)
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("%d generations failed, first: %v", len(errs), errs[0])
	}
	for _, d := range divisions {
		got := dailies[d]
		sort.Ints(got)
		for i, v := range got {
			if v != i+2 {
				t.Fatalf("%s: expected daily serials 2..%d, got %v", d, perScope+1, got)
			}
		}
	}
	if len(globals) != 2*perScope {
		t.Fatalf("expected %d distinct global serials, got %d", 2*perScope, len(globals))
	}
	for g := range globals {
		if g < 3 || g > int64(2*perScope+2) {
			t.Fatalf("global serial %d outside the expected range", g)
		}
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("letters-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("letters-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=letters_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
