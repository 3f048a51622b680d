package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
)

/**
 * @brief A windowless Vulkan instance owning one logical device with a
 * compute queue. Used when the binder is not embedded in a host renderer.
 */
type VulkanInstance struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Device    *VulkanDevice
}

func NewHeadlessVulkanInstance(appName string) (*VulkanInstance, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("failed to load the vulkan loader: %w", err)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %w", err)
	}

	vi := &VulkanInstance{}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("shaderbind"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	var instance vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&createInfo, vi.Allocator, &instance)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, vi.Allocator)
		return nil, err
	}
	vi.Instance = instance
	core.LogInfo("Vulkan Instance created.")

	physical, queueIndex, err := vi.selectPhysicalDevice()
	if err != nil {
		vi.Destroy()
		return nil, err
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
	}
	var logical vk.Device
	if err := checkResult("vkCreateDevice", vk.CreateDevice(physical, &deviceCreateInfo, vi.Allocator, &logical)); err != nil {
		vi.Destroy()
		return nil, err
	}
	core.LogInfo("Logical device created.")

	vi.Device = NewVulkanDevice(physical, logical, queueIndex)
	return vi, nil
}

// selectPhysicalDevice picks the first device exposing a compute queue family.
func (vi *VulkanInstance) selectPhysicalDevice() (vk.PhysicalDevice, uint32, error) {
	var physicalDeviceCount uint32
	if err := checkResult("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vi.Instance, &physicalDeviceCount, nil)); err != nil {
		return nil, 0, err
	}
	if physicalDeviceCount == 0 {
		return nil, 0, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrNotFound)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := checkResult("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vi.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return nil, 0, err
	}

	for _, device := range physicalDevices {
		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

		for i := uint32(0); i < queueFamilyCount; i++ {
			queueFamilies[i].Deref()
			if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
				return device, i, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("no device with a compute queue: %w", core.ErrNotFound)
}

func (vi *VulkanInstance) Destroy() {
	if vi.Device != nil && vi.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vi.Device.LogicalDevice)
		vk.DestroyDevice(vi.Device.LogicalDevice, vi.Allocator)
		vi.Device = nil
		core.LogInfo("Destroying logical device...")
	}
	if vi.Instance != nil {
		vk.DestroyInstance(vi.Instance, vi.Allocator)
		vi.Instance = nil
	}
}
