package dircd_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDircd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dircd Suite")
}
