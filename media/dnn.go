package media

import (
	"log"

	"gocv.io/x/gocv"
)

// selectBackend tries CUDA first and falls back to the default CPU backend.
func selectBackend(net *gocv.Net, tag string) {
	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("%s: Set backend/target to CUDA", tag)
		return
	}
	if cudaBackendErr != nil {
		log.Printf("%s: CUDA Backend not available: %v. Using default backend.", tag, cudaBackendErr)
	}
	if cudaTargetErr != nil {
		log.Printf("%s: CUDA Target not available: %v. Using default target.", tag, cudaTargetErr)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Printf("%s: Set backend/target to CPU (Default)", tag)
}
