package gopool_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestGopool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "gopool Suite")
}
